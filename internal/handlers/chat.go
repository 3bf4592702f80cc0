package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/chuanqi87/agent/internal/agent"
	"github.com/chuanqi87/agent/internal/config"
	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
	"github.com/chuanqi87/agent/internal/sse"
	"github.com/chuanqi87/agent/internal/upstream"
)

// ChatHandler is the chat completions facade. It decides, per request,
// between one-shot dispatch, the local tool loop, upstream stream
// passthrough, and buffered-then-rechunked streaming.
type ChatHandler struct {
	config     *config.Manager
	registry   *providers.Registry
	dispatcher *upstream.Dispatcher
	loop       *agent.Loop
	memory     *agent.Memory
	relay      *sse.Relay
	rechunker  *sse.Rechunker
	logger     *slog.Logger

	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
}

func NewChatHandler(
	config *config.Manager,
	registry *providers.Registry,
	dispatcher *upstream.Dispatcher,
	loop *agent.Loop,
	memory *agent.Memory,
	logger *slog.Logger,
) *ChatHandler {
	inactivity := time.Duration(config.Get().StreamInactivitySeconds) * time.Second

	return &ChatHandler{
		config:     config,
		registry:   registry,
		dispatcher: dispatcher,
		loop:       loop,
		memory:     memory,
		relay:      sse.NewRelay(logger, inactivity),
		rechunker:  sse.NewRechunker(),
		logger:     logger,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.logger, gateway.NewValidationError("failed to read request body: %v", err))
		return
	}

	var req gateway.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, h.logger, gateway.NewValidationError("request body is not valid JSON: %v", err))
		return
	}

	canonical, err := gateway.Normalize(&req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	cfg := h.registry.Active()
	if canonical.Model == "" {
		canonical.Model = cfg.Model
	}

	h.logger.Info("chat completion request",
		"provider", cfg.Provider,
		"model", canonical.Model,
		"stream", req.Stream,
		"messages", len(canonical.Messages),
		"client_tools", req.HasToolDeclarations(),
		"input_tokens", h.countInputTokens(canonical.Messages),
	)

	// The tool loop only drives requests that bring no tools of their
	// own; callers that declare tools run their own loop client-side.
	agentOn := h.config.Get().Agent.Enabled && !req.HasToolDeclarations()

	id := gateway.NewCompletionID()
	created := gateway.Now()

	if !req.Stream {
		if agentOn {
			h.serveAgent(w, r, cfg, canonical, &req, id, created)
		} else {
			h.serveBuffered(w, r, cfg, canonical, id, created)
		}
		return
	}

	if req.HasToolDeclarations() {
		writeError(w, h.logger, gateway.NewValidationError(
			"streaming is not supported for requests with tool declarations; set stream=false"))
		return
	}

	if !agentOn && cfg.NativeStreaming {
		h.servePassthrough(w, r, cfg, canonical, id, created)
		return
	}

	h.serveRechunked(w, r, cfg, canonical, &req, id, created, agentOn)
}

// serveBuffered is the plain one-shot path: dispatch, assemble, reply.
func (h *ChatHandler) serveBuffered(
	w http.ResponseWriter, r *http.Request,
	cfg providers.Config, canonical *gateway.CanonicalRequest,
	id string, created int64,
) {
	canonical.Stream = false

	body, err := h.dispatcher.Do(r.Context(), cfg, canonical)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp, err := gateway.Assemble(body, id, created, canonical.Model, canonical.Messages)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// serveAgent runs the tool loop with conversation memory and returns
// the final text as a buffered completion.
func (h *ChatHandler) serveAgent(
	w http.ResponseWriter, r *http.Request,
	cfg providers.Config, canonical *gateway.CanonicalRequest,
	req *gateway.ChatCompletionRequest,
	id string, created int64,
) {
	reply, err := h.runAgent(r, cfg, canonical, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := gateway.AssembleText(reply, id, created, canonical.Model, canonical.Messages)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// servePassthrough relays the upstream SSE stream to the client.
func (h *ChatHandler) servePassthrough(
	w http.ResponseWriter, r *http.Request,
	cfg providers.Config, canonical *gateway.CanonicalRequest,
	id string, created int64,
) {
	canonical.Stream = true

	stream, err := h.dispatcher.Stream(r.Context(), cfg, canonical)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sw := sse.NewWriter(w)
	ident := sse.StreamIdentity{ID: id, Created: created, Model: canonical.Model}

	if err := h.relay.Run(r.Context(), stream, sw, ident); err != nil {
		// Already reported in-band; nothing more to send.
		h.logger.Warn("stream relay ended with error", "error", err)
	}
}

// serveRechunked produces the reply buffered (via the tool loop or a
// one-shot call) and replays it as a synthetic character stream.
func (h *ChatHandler) serveRechunked(
	w http.ResponseWriter, r *http.Request,
	cfg providers.Config, canonical *gateway.CanonicalRequest,
	req *gateway.ChatCompletionRequest,
	id string, created int64,
	agentOn bool,
) {
	var (
		reply string
		err   error
	)

	if agentOn {
		reply, err = h.runAgent(r, cfg, canonical, req)
	} else {
		canonical.Stream = false

		var body []byte
		if body, err = h.dispatcher.Do(r.Context(), cfg, canonical); err == nil {
			var resp *gateway.ChatCompletionResponse
			if resp, err = gateway.Assemble(body, id, created, canonical.Model, canonical.Messages); err == nil {
				reply = resp.Choices[0].Message.Text()
			}
		}
	}

	if err != nil {
		// Nothing has been streamed yet, so a plain error reply is
		// still possible.
		writeError(w, h.logger, err)
		return
	}

	sw := sse.NewWriter(w)
	ident := sse.StreamIdentity{ID: id, Created: created, Model: canonical.Model}

	if err := h.rechunker.Stream(r.Context(), sw, ident, reply); err != nil {
		h.logger.Warn("rechunked stream ended early", "error", err)
	}
}

// runAgent injects the session history ahead of the inbound turn, runs
// the loop, and records the exchange.
func (h *ChatHandler) runAgent(
	r *http.Request,
	cfg providers.Config, canonical *gateway.CanonicalRequest,
	req *gateway.ChatCompletionRequest,
) (string, error) {
	session := req.User
	if session == "" {
		session = agent.DefaultSession
	}

	if history := h.memory.History(session); len(history) > 0 {
		canonical.Messages = append(history, canonical.Messages...)
	}

	reply, err := h.loop.Run(r.Context(), cfg, canonical)
	if err != nil {
		return "", err
	}

	h.memory.AppendTurn(session, gateway.LastUserMessage(req.Messages), reply)

	return reply, nil
}

// countInputTokens measures the prompt with the cl100k_base encoding.
// The count is advisory logging only, so encoder failures degrade to
// zero rather than failing the request.
func (h *ChatHandler) countInputTokens(messages []gateway.Message) int {
	h.encoderOnce.Do(func() {
		encoder, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			h.logger.Warn("tiktoken encoding unavailable", "error", err)
			return
		}
		h.encoder = encoder
	})

	if h.encoder == nil {
		return 0
	}

	total := 0
	for _, msg := range messages {
		total += len(h.encoder.Encode(msg.Text(), nil, nil))
	}

	return total
}
