// Package gateway holds the canonical, dialect-independent request and
// response shapes of the OpenAI chat-completion protocol, plus the
// normalization, schema translation, and response assembly logic that
// converts between inbound dialects and the canonical form.
package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles accepted on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Object type markers used in responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// Finish reasons.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonError     = "error"
)

// FunctionCall is the name/arguments pair inside a tool call. Arguments
// is an opaque JSON-encoded string copied verbatim between dialects;
// the gateway never re-validates or re-serializes it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is one conversation turn. Content is a pointer so that an
// absent content field stays distinguishable from an empty string.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Text returns the message content, or "" when unset.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// TextMessage builds a plain text message with the given role.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// ToolMessage builds a tool-result message answering the given call.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: &content}
}

// FunctionDef is a legacy "functions" entry on an inbound request. The
// parameters schema arrives raw and goes through the schema translator
// before it is forwarded anywhere.
type FunctionDef struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Parameters  *SchemaObject `json:"parameters,omitempty"`
}

// ToolDef is a modern "tools" entry.
type ToolDef struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// ChatCompletionRequest is the inbound request body of
// POST /v1/chat/completions, covering both the legacy functions field
// and the modern tools field.
type ChatCompletionRequest struct {
	Model            string        `json:"model,omitempty"`
	Messages         []Message     `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	User             string        `json:"user,omitempty"`
	Functions        []FunctionDef `json:"functions,omitempty"`
	FunctionCall     any           `json:"function_call,omitempty"`
	Tools            []ToolDef     `json:"tools,omitempty"`
	ToolChoice       any           `json:"tool_choice,omitempty"`
}

// HasToolDeclarations reports whether the caller supplied its own
// function or tool schemas.
func (r *ChatCompletionRequest) HasToolDeclarations() bool {
	return len(r.Functions) > 0 || len(r.Tools) > 0
}

// CanonicalRequest is the normalized, dialect-independent request the
// dispatcher sends upstream. Tools is the merged, translated schema
// list (legacy functions first, then modern tools, order preserved,
// duplicates passed through).
type CanonicalRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      *float64  `json:"temperature,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	Tools            []ToolDef `json:"tools,omitempty"`
	ToolChoice       any       `json:"tool_choice,omitempty"`
}

// Choice is one completion alternative in a buffered response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is the token accounting block. TotalTokens is always the sum
// of the other two, never independently measured.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the buffered response body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Delta is the incremental message fragment inside a stream chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// StreamChoice is one alternative inside a stream chunk.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// StreamChunk is one chat.completion.chunk event. ID and Created are
// identical across every chunk of one response.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the inner error object of the client-visible error
// envelope.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorEnvelope is the buffered-mode error body.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ModelInfo is one entry of GET /v1/models.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response body.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// NewCompletionID produces a fresh chatcmpl-prefixed identifier in the
// same short form the service has always used.
func NewCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString()[:8])
}

// Now returns the current unix timestamp used for created fields.
func Now() int64 {
	return time.Now().Unix()
}
