// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the sampling bridge: translating an inbound
// sampling/createMessage request into a streaming chat call, and its
// accumulated reply back into a CreateMessageResult. The chat call itself
// — the actual LLM invocation — is outside this module; BindSampling is
// built around the ChatCaller seam so any backend can be plugged in.

package mcp

import (
	"context"
	"strings"
)

// ChatPartKind identifies what a ChatPart carries.
type ChatPartKind int

const (
	ChatPartText ChatPartKind = iota
	ChatPartBinary
)

// ChatPart is one piece of a ChatMessage, translated from (or destined
// for) an MCP [Content] value.
type ChatPart struct {
	Kind ChatPartKind
	// Text holds the part's text when Kind is ChatPartText.
	Text string
	// Data and MIMEType hold the part's payload when Kind is
	// ChatPartBinary: an image, an audio clip, or an embedded resource's
	// blob.
	Data     []byte
	MIMEType string
}

// ChatMessage is one turn of a chat conversation, translated from an MCP
// [SamplingMessage].
type ChatMessage struct {
	Role  Role
	Parts []ChatPart
}

// ChatOptions carries the generation controls from a
// CreateMessageParams into a ChatCaller invocation.
type ChatOptions struct {
	MaxTokens     int64
	Temperature   float64
	StopSequences []string
	SystemPrompt  string
}

// ChatUpdate is one incremental update from a streaming chat call. The
// final update delivered to onUpdate carries the complete reply, with
// FinishReason set to why generation stopped.
type ChatUpdate struct {
	Role         Role
	Parts        []ChatPart
	Model        string
	FinishReason string
}

// ChatCaller issues a streaming chat completion. onUpdate is invoked once
// per update; Chat returns once the stream ends or ctx is cancelled.
type ChatCaller interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions, onUpdate func(ChatUpdate)) error
}

// ChatCallerFunc adapts a function to a ChatCaller.
type ChatCallerFunc func(ctx context.Context, messages []ChatMessage, opts ChatOptions, onUpdate func(ChatUpdate)) error

func (f ChatCallerFunc) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions, onUpdate func(ChatUpdate)) error {
	return f(ctx, messages, opts, onUpdate)
}

// BindSampling adapts chat into a Handlers.CreateMessage callback:
//
//  1. Translates the request's messages and generation controls into
//     ([]ChatMessage, ChatOptions).
//  2. Issues the streaming chat call, accumulating updates.
//  3. If the request carries a progress token, emits a
//     notifications/progress after each update, with progress set to the
//     number of updates received so far.
//  4. Synthesizes the last update into a CreateMessageResult.
func BindSampling(chat ChatCaller) func(context.Context, *CreateMessageRequest) (*CreateMessageResult, error) {
	return func(ctx context.Context, req *CreateMessageRequest) (*CreateMessageResult, error) {
		params := req.Params
		messages := samplingMessagesToChat(params.Messages)
		opts := ChatOptions{
			MaxTokens:     params.MaxTokens,
			Temperature:   params.Temperature,
			StopSequences: params.StopSequences,
			SystemPrompt:  params.SystemPrompt,
		}

		var updates int
		var last ChatUpdate
		onUpdate := func(u ChatUpdate) {
			updates++
			last = u
			_ = req.Progress(ctx, "", float64(updates), 0)
		}
		if err := chat.Chat(ctx, messages, opts, onUpdate); err != nil {
			return nil, err
		}
		return synthesizeSamplingResult(last), nil
	}
}

// samplingMessagesToChat translates the request side of the bridge: each
// SamplingMessage becomes a ChatMessage with the same role, its Content
// translated to ChatParts.
func samplingMessagesToChat(messages []*SamplingMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Parts: contentToChatParts(m.Content)})
	}
	return out
}

// contentToChatParts translates a single MCP Content value into the
// ChatParts a chat call expects. ToolUseContent and ToolResultContent
// represent the client's own prior turns rather than request content the
// server is asking the client to sample over, so they translate to
// nothing here.
func contentToChatParts(c Content) []ChatPart {
	switch v := c.(type) {
	case *TextContent:
		return []ChatPart{{Kind: ChatPartText, Text: v.Text}}
	case *ImageContent:
		return []ChatPart{{Kind: ChatPartBinary, Data: v.Data, MIMEType: v.MIMEType}}
	case *AudioContent:
		return []ChatPart{{Kind: ChatPartBinary, Data: v.Data, MIMEType: v.MIMEType}}
	case *EmbeddedResource:
		if v.Resource == nil {
			return nil
		}
		if v.Resource.Text != "" {
			return []ChatPart{{Kind: ChatPartText, Text: v.Resource.Text}}
		}
		return []ChatPart{{Kind: ChatPartBinary, Data: v.Resource.Blob, MIMEType: v.Resource.MIMEType}}
	default:
		return nil
	}
}

// synthesizeSamplingResult implements step 4: the last update wins
// (trivially, since a ChatUpdate already is the latest one accumulated),
// with a binary part preferred over text when both are present, model
// defaulting to "unknown", and stopReason mapped from the finish reason.
func synthesizeSamplingResult(last ChatUpdate) *CreateMessageResult {
	model := last.Model
	if model == "" {
		model = "unknown"
	}
	stopReason := "endTurn"
	if isLengthFinishReason(last.FinishReason) {
		stopReason = "maxTokens"
	}
	return &CreateMessageResult{
		Content:    synthesizeContent(last.Parts),
		Model:      model,
		Role:       last.Role,
		StopReason: stopReason,
	}
}

// synthesizeContent picks a single Content value out of a reply's parts:
// the first binary part if any is present, otherwise all text parts
// concatenated.
func synthesizeContent(parts []ChatPart) Content {
	for _, p := range parts {
		if p.Kind == ChatPartBinary {
			if isAudioMIMEType(p.MIMEType) {
				return &AudioContent{Data: p.Data, MIMEType: p.MIMEType}
			}
			return &ImageContent{Data: p.Data, MIMEType: p.MIMEType}
		}
	}
	var text strings.Builder
	for _, p := range parts {
		if p.Kind == ChatPartText {
			text.WriteString(p.Text)
		}
	}
	return &TextContent{Text: text.String()}
}

func isAudioMIMEType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/")
}

// isLengthFinishReason reports whether reason, spelled as a chat backend
// names it, indicates generation stopped because a token limit was hit.
func isLengthFinishReason(reason string) bool {
	switch strings.ToLower(reason) {
	case "length", "max_tokens", "maxtokens":
		return true
	default:
		return false
	}
}

// NewTextSamplingResult builds a CreateMessageResult carrying a single
// text content block, for handlers that don't need the full ChatCaller
// bridge.
func NewTextSamplingResult(model string, role Role, text string) *CreateMessageResult {
	return &CreateMessageResult{Content: &TextContent{Text: text}, Model: model, Role: role}
}
