package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_Success(t *testing.T) {
	body := []byte(`{
		"id": "upstream-id",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "hello"},
			"finish_reason": "stop"
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 99}
	}`)

	resp, err := Assemble(body, "chatcmpl-test", 1700000000, "test-model", nil)
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-test", resp.ID)
	assert.Equal(t, ObjectChatCompletion, resp.Object)
	assert.Equal(t, int64(1700000000), resp.Created)
	assert.Equal(t, "test-model", resp.Model)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Text())
	assert.Equal(t, FinishReasonStop, resp.Choices[0].FinishReason)

	// upstream total is never trusted; it is always the sum
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestAssemble_ToolCallsPreserved(t *testing.T) {
	body := []byte(`{
		"choices": [{
			"message": {
				"role": "assistant",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "calculator", "arguments": "{\"expression\":\"1+1\"}"}
				}]
			},
			"finish_reason": "tool_calls"
		}]
	}`)

	resp, err := Assemble(body, "id", 0, "m", nil)
	require.NoError(t, err)

	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	call := resp.Choices[0].Message.ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "calculator", call.Function.Name)
	assert.Equal(t, `{"expression":"1+1"}`, call.Function.Arguments)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestAssemble_EstimatesUsageWhenAbsent(t *testing.T) {
	body := []byte(`{"choices": [{"message": {"role": "assistant", "content": "two words"}}]}`)
	prompt := []Message{TextMessage(RoleUser, "say two words")}

	resp, err := Assemble(body, "id", 0, "m", prompt)
	require.NoError(t, err)

	expected := EstimateUsage(prompt, "two words")
	assert.Equal(t, expected, resp.Usage)
}

func TestAssemble_DefaultsFinishReason(t *testing.T) {
	body := []byte(`{"choices": [{"message": {"role": "assistant", "content": "x"}}]}`)

	resp, err := Assemble(body, "id", 0, "m", nil)
	require.NoError(t, err)
	assert.Equal(t, FinishReasonStop, resp.Choices[0].FinishReason)
}

func TestAssemble_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>gateway timeout</html>`},
		{name: "empty choices", body: `{"choices": []}`},
		{name: "choice without message", body: `{"choices": [{"index": 0}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble([]byte(tt.body), "id", 0, "m", nil)
			require.Error(t, err)
			assert.Equal(t, ErrorTypeUpstreamShape, ErrorType(err))
		})
	}
}

func TestAssembleText(t *testing.T) {
	prompt := []Message{TextMessage(RoleUser, "hi")}

	resp := AssembleText("hello there", "chatcmpl-x", 123, "m", prompt)

	assert.Equal(t, "chatcmpl-x", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "hello there", resp.Choices[0].Message.Text())
	assert.Equal(t, FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}
