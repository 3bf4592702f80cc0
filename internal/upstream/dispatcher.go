// Package upstream issues the HTTP calls to the resolved model
// backend, one POST per gateway request, streaming or buffered.
package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"

	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
)

// DefaultBufferedTimeout is the hard ceiling for non-streaming calls.
// Streaming calls carry no total cap; inactivity is handled by the
// stream consumer.
const DefaultBufferedTimeout = 120 * time.Second

// Dispatcher performs upstream chat-completion calls. The embedded
// HTTP client is safe for concurrent use and shared across requests.
type Dispatcher struct {
	client          *http.Client
	logger          *slog.Logger
	bufferedTimeout time.Duration
}

// NewDispatcher builds a dispatcher. A zero timeout selects the
// default buffered ceiling.
func NewDispatcher(logger *slog.Logger, bufferedTimeout time.Duration) *Dispatcher {
	if bufferedTimeout <= 0 {
		bufferedTimeout = DefaultBufferedTimeout
	}
	return &Dispatcher{
		client:          &http.Client{},
		logger:          logger,
		bufferedTimeout: bufferedTimeout,
	}
}

// Do issues a buffered call and returns the decompressed response
// body. Non-2xx replies become UpstreamError with the status and body
// verbatim; connection and timeout failures become TransportError.
// Retrying is the caller's business, never the dispatcher's.
func (d *Dispatcher) Do(ctx context.Context, cfg providers.Config, req *gateway.CanonicalRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.bufferedTimeout)
	defer cancel()

	resp, err := d.post(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader, err := decompress(resp)
	if err != nil {
		return nil, &gateway.TransportError{Op: "decompress", Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &gateway.TransportError{Op: "read", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, d.upstreamError(resp.StatusCode, body)
	}

	return body, nil
}

// Stream issues a streaming call and hands back the decompressed
// event stream. The returned reader must be closed by the consumer;
// closing it releases the upstream connection.
func (d *Dispatcher) Stream(ctx context.Context, cfg providers.Config, req *gateway.CanonicalRequest) (io.ReadCloser, error) {
	resp, err := d.post(ctx, cfg, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, d.upstreamError(resp.StatusCode, body)
	}

	reader, err := decompress(resp)
	if err != nil {
		resp.Body.Close()
		return nil, &gateway.TransportError{Op: "decompress", Err: err}
	}

	return &streamBody{reader: reader, body: resp.Body}, nil
}

func (d *Dispatcher) post(ctx context.Context, cfg providers.Config, req *gateway.CanonicalRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream request: %w", err)
	}

	endpoint := cfg.Endpoint()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	d.logger.Debug("dispatching upstream request",
		"provider", cfg.Provider,
		"model", req.Model,
		"url", endpoint,
		"stream", req.Stream,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &gateway.TransportError{Op: "call", Err: ctx.Err()}
		}
		return nil, &gateway.TransportError{Op: "call", Err: err}
	}

	return resp, nil
}

func (d *Dispatcher) upstreamError(status int, body []byte) error {
	// The body shape varies by dialect; probe for the common error
	// message location before logging.
	message := gjson.GetBytes(body, "error.message").String()
	d.logger.Error("upstream error response",
		"status", status,
		"message", message,
	)
	return &gateway.UpstreamError{StatusCode: status, Body: string(body)}
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// streamBody pairs a possibly-decompressed reader with the underlying
// response body so Close releases the connection.
type streamBody struct {
	reader io.Reader
	body   io.ReadCloser
}

func (s *streamBody) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *streamBody) Close() error {
	if closer, ok := s.reader.(io.Closer); ok {
		closer.Close()
	}
	return s.body.Close()
}
