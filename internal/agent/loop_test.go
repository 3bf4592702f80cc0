package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
	"github.com/chuanqi87/agent/internal/tools"
	"github.com/chuanqi87/agent/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) providers.Config {
	return providers.Config{
		Provider:        "openai",
		APIKey:          "test-key",
		BaseURL:         baseURL,
		Model:           "test-model",
		NativeStreaming: true,
	}
}

func userRequest(text string) *gateway.CanonicalRequest {
	return &gateway.CanonicalRequest{
		Model:    "test-model",
		Messages: []gateway.Message{gateway.TextMessage(gateway.RoleUser, text)},
	}
}

func toolCallReply(callID, tool, arguments string) string {
	reply := map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id":   callID,
					"type": "function",
					"function": map[string]any{
						"name":      tool,
						"arguments": arguments,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	}
	out, _ := json.Marshal(reply)
	return string(out)
}

func textReply(text string) string {
	reply := map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
	}
	out, _ := json.Marshal(reply)
	return string(out)
}

func TestLoop_DirectAnswer(t *testing.T) {
	var sawTools bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		sawTools = len(req.Tools) > 0
		assert.False(t, req.Stream)

		w.Write([]byte(textReply("plain answer")))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 0)

	reply, err := loop.Run(context.Background(), testConfig(server.URL), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "plain answer", reply)
	assert.True(t, sawTools, "registry schemas should be advertised")
}

func TestLoop_ExecutesToolCall(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		calls++
		if calls == 1 {
			w.Write([]byte(toolCallReply("call_1", "calculator", `{"expression":"6*7"}`)))
			return
		}

		// second round must carry the assistant turn and the tool result
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, gateway.RoleTool, last.Role)
		assert.Equal(t, "call_1", last.ToolCallID)
		assert.Equal(t, "6*7 = 42", last.Text())

		assistant := req.Messages[len(req.Messages)-2]
		require.Len(t, assistant.ToolCalls, 1)

		w.Write([]byte(textReply("the answer is 42")))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 0)

	reply, err := loop.Run(context.Background(), testConfig(server.URL), userRequest("what is 6*7"))
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", reply)
	assert.Equal(t, 2, calls)
}

func TestLoop_ToolFailureFeedsBack(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		calls++
		if calls == 1 {
			w.Write([]byte(toolCallReply("call_1", "calculator", `{"expression":"1/0"}`)))
			return
		}

		last := req.Messages[len(req.Messages)-1]
		assert.Contains(t, last.Text(), "tool error")

		w.Write([]byte(textReply("cannot divide by zero")))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 0)

	reply, err := loop.Run(context.Background(), testConfig(server.URL), userRequest("1/0"))
	require.NoError(t, err)
	assert.Equal(t, "cannot divide by zero", reply)
}

func TestLoop_IterationLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the model keeps asking for tools forever
		w.Write([]byte(toolCallReply("call_x", "calculator", `{"expression":"1+1"}`)))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 2)

	reply, err := loop.Run(context.Background(), testConfig(server.URL), userRequest("loop"))
	require.NoError(t, err)
	assert.Equal(t, iterationLimitReply, reply)
}

func TestLoop_DoesNotMutateRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textReply("ok")))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 0)

	req := userRequest("hi")
	req.Stream = true

	_, err := loop.Run(context.Background(), testConfig(server.URL), req)
	require.NoError(t, err)

	assert.True(t, req.Stream)
	assert.Len(t, req.Messages, 1)
	assert.Nil(t, req.Tools)
}

func TestLoop_UpstreamErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	loop := NewLoop(upstream.NewDispatcher(testLogger(), time.Second), tools.DefaultRegistry(), testLogger(), 0)

	_, err := loop.Run(context.Background(), testConfig(server.URL), userRequest("hi"))
	require.Error(t, err)

	var upstreamErr *gateway.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
}
