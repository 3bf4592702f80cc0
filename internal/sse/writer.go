// Package sse implements the Server-Sent-Events side of the gateway:
// a writer that frames canonical events for the client, a relay that
// transcodes an upstream event stream, and a re-chunker that
// synthesizes a stream from an already-complete reply.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chuanqi87/agent/internal/gateway"
)

// DoneSentinel is the literal payload terminating every stream.
const DoneSentinel = "[DONE]"

// Writer frames payloads as SSE data events and flushes after each
// one so chunks reach the client as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event-stream output and returns a Writer
// over it.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent emits one data event with the given payload.
func (sw *Writer) WriteEvent(payload []byte) error {
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	sw.flush()
	return nil
}

// WriteChunk marshals a stream chunk and emits it as a data event.
func (sw *Writer) WriteChunk(chunk gateway.StreamChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	return sw.WriteEvent(payload)
}

// WriteDone emits the terminal [DONE] sentinel.
func (sw *Writer) WriteDone() error {
	return sw.WriteEvent([]byte(DoneSentinel))
}

func (sw *Writer) flush() {
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// NewErrorChunk builds the synthetic terminal chunk emitted when a
// stream fails mid-flight. It carries finish_reason "error" and the
// failure message in-band, so the client never sees a bare connection
// reset.
func NewErrorChunk(id string, created int64, model, message string) gateway.StreamChunk {
	reason := gateway.FinishReasonError
	return gateway.StreamChunk{
		ID:      id,
		Object:  gateway.ObjectChatCompletionChunk,
		Created: created,
		Model:   model,
		Choices: []gateway.StreamChoice{
			{Index: 0, Delta: gateway.Delta{}, FinishReason: &reason},
		},
		Error: &gateway.ErrorDetail{
			Message: message,
			Type:    gateway.ErrorTypeStreamProtocol,
		},
	}
}
