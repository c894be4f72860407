// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "errors"

// ErrNoProgressToken is returned by [ClientRequest.Progress] when the
// originating request carried no progress token.
var ErrNoProgressToken = errors.New("no progress token")
