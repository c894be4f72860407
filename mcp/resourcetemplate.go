// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"

	"github.com/yosida95/uritemplate/v3"
)

// Expand substitutes values into the template's RFC 6570 URI template,
// producing a concrete resource URI suitable for [ClientSession.ReadResource].
func (rt *ResourceTemplate) Expand(values map[string]string) (string, error) {
	tmpl, err := uritemplate.New(rt.URITemplate)
	if err != nil {
		return "", fmt.Errorf("mcp: parsing resource template %q: %w", rt.URITemplate, err)
	}
	vars := uritemplate.Values{}
	for k, v := range values {
		vars = vars.Set(k, uritemplate.String(v))
	}
	return tmpl.Expand(vars)
}
