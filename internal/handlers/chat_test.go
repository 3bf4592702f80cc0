package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuanqi87/agent/internal/agent"
	"github.com/chuanqi87/agent/internal/config"
	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
	"github.com/chuanqi87/agent/internal/sse"
	"github.com/chuanqi87/agent/internal/tools"
	"github.com/chuanqi87/agent/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestChatHandler wires a full facade against the given upstream.
func newTestChatHandler(t *testing.T, upstreamURL string, agentEnabled, nativeStreaming bool) *ChatHandler {
	t.Helper()

	cfgMgr := config.NewManager(t.TempDir())
	require.NoError(t, cfgMgr.Save(&config.Config{
		Provider: "openai",
		Providers: map[string]config.ProviderSettings{
			"openai": {APIKey: "test-key", BaseURL: upstreamURL},
		},
		Agent: config.AgentConfig{Enabled: agentEnabled},
	}))

	registry, err := providers.NewRegistry(map[string]providers.Settings{
		"openai": {APIKey: "test-key", BaseURL: upstreamURL, NativeStreaming: &nativeStreaming},
	}, "openai")
	require.NoError(t, err)

	logger := testLogger()
	dispatcher := upstream.NewDispatcher(logger, time.Second)
	loop := agent.NewLoop(dispatcher, tools.DefaultRegistry(), logger, 0)

	h := NewChatHandler(cfgMgr, registry, dispatcher, loop, agent.NewMemory(0), logger)
	h.rechunker = &sse.Rechunker{} // no pauses in tests
	return h
}

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func sseDataPayloads(body string) []string {
	var payloads []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	return payloads
}

func TestChatHandler_Buffered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, false, true)

	rec := postChat(h, `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp gateway.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, gateway.ObjectChatCompletion, resp.Object)
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Text())
	assert.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestChatHandler_ValidationErrors(t *testing.T) {
	h := newTestChatHandler(t, "http://unused.invalid", false, true)

	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{broken`},
		{name: "empty messages", body: `{"messages":[]}`},
		{name: "no user role", body: `{"messages":[{"role":"assistant","content":"x"}]}`},
		{
			name: "streaming with tools rejected",
			body: `{"stream":true,"messages":[{"role":"user","content":"x"}],
				"tools":[{"type":"function","function":{"name":"f"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(h, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var envelope gateway.ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, gateway.ErrorTypeValidation, envelope.Error.Type)
		})
	}
}

func TestChatHandler_UpstreamErrorVerbatim(t *testing.T) {
	errorBody := `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(errorBody))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, false, true)

	rec := postChat(h, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, errorBody, rec.Body.String())
}

func TestChatHandler_StreamPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"seq\":1}\n\ndata: {\"seq\":2}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, false, true)

	rec := postChat(h, `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	payloads := sseDataPayloads(rec.Body.String())
	assert.Equal(t, []string{`{"seq":1}`, `{"seq":2}`, sse.DoneSentinel}, payloads)
}

func TestChatHandler_RechunksNonNativeStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// the upstream call is buffered even though the client streams
		assert.False(t, req.Stream)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ab"}}]}`))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, false, false)

	rec := postChat(h, `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payloads := sseDataPayloads(rec.Body.String())
	require.NotEmpty(t, payloads)
	assert.Equal(t, sse.DoneSentinel, payloads[len(payloads)-1])

	var text string
	var terminal int
	for _, payload := range payloads[:len(payloads)-1] {
		var chunk gateway.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		text += chunk.Choices[0].Delta.Content
		if chunk.Choices[0].FinishReason != nil {
			terminal++
		}
	}
	assert.Equal(t, "ab", text)
	assert.Equal(t, 1, terminal)
}

func TestChatHandler_AgentPath(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Tools, "registry schemas should be advertised")

		calls++
		if calls == 1 {
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[
				{"id":"c1","type":"function","function":{"name":"calculator","arguments":"{\"expression\":\"2+2\"}"}}
			]},"finish_reason":"tool_calls"}]}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"it is 4"}}]}`))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, true, true)

	rec := postChat(h, `{"messages":[{"role":"user","content":"2+2?"}],"user":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp gateway.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "it is 4", resp.Choices[0].Message.Text())
	assert.Equal(t, 2, calls)

	// the exchange landed in session memory
	history := h.memory.History("alice")
	require.Len(t, history, 2)
	assert.Equal(t, "2+2?", history[0].Text())
	assert.Equal(t, "it is 4", history[1].Text())
}

func TestChatHandler_AgentStreamIsRechunked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, true, true)

	rec := postChat(h, `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	payloads := sseDataPayloads(rec.Body.String())
	require.NotEmpty(t, payloads)
	assert.Equal(t, sse.DoneSentinel, payloads[len(payloads)-1])
}

func TestChatHandler_ClientToolsBypassAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CanonicalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// only the client's own tool is forwarded, not the registry's
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "client_tool", req.Tools[0].Function.Name)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer server.Close()

	h := newTestChatHandler(t, server.URL, true, true)

	rec := postChat(h, `{"messages":[{"role":"user","content":"hi"}],
		"tools":[{"type":"function","function":{"name":"client_tool"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	h := newTestChatHandler(t, "http://unused.invalid", false, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
