package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chuanqi87/agent/internal/gateway"
)

const (
	dataPrefix = "data:"

	// DefaultInactivityTimeout closes a stream that has produced no
	// bytes for this long. Streams have no total-duration cap since
	// legitimate generations can run long.
	DefaultInactivityTimeout = 60 * time.Second

	// Upstream SSE lines can carry large JSON payloads.
	maxLineSize = 1 << 20
)

// StreamIdentity pins the chunk id, creation time, and model name that
// stay constant across every event of one response.
type StreamIdentity struct {
	ID      string
	Created int64
	Model   string
}

// Relay transcodes an upstream SSE byte stream into a canonical
// event stream: data events with valid JSON payloads are forwarded
// unmodified and in order, malformed events are dropped, and the
// stream always terminates with exactly one [DONE] sentinel.
type Relay struct {
	logger     *slog.Logger
	inactivity time.Duration
}

// NewRelay builds a relay with the given inactivity timeout; zero
// selects the default.
func NewRelay(logger *slog.Logger, inactivity time.Duration) *Relay {
	if inactivity <= 0 {
		inactivity = DefaultInactivityTimeout
	}
	return &Relay{logger: logger, inactivity: inactivity}
}

// Run consumes upstream until the [DONE] sentinel, the context is
// canceled, the inactivity timeout fires, or the connection closes.
// The upstream reader is always closed before returning, so a client
// disconnect releases the upstream connection promptly.
//
// A close without [DONE] and an inactivity timeout both end the
// downstream stream in-band: one synthetic error chunk, then [DONE].
func (r *Relay) Run(ctx context.Context, upstream io.ReadCloser, sw *Writer, ident StreamIdentity) error {
	defer upstream.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(upstream)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	timer := time.NewTimer(r.inactivity)
	defer timer.Stop()

	forwarded := 0
	dropped := 0

	for {
		select {
		case <-ctx.Done():
			// Client went away; closing upstream (deferred) stops the
			// reader goroutine.
			r.logger.Debug("stream relay canceled", "forwarded", forwarded)
			return ctx.Err()

		case <-timer.C:
			return r.fail(sw, ident, "upstream produced no data within the inactivity window")

		case line, ok := <-lines:
			if !ok {
				// The reader goroutine sends no error when it exits on
				// cancellation, so do not block on readErr unconditionally.
				var err error
				select {
				case err = <-readErr:
				case <-ctx.Done():
					return ctx.Err()
				}
				reason := "upstream closed the stream before sending [DONE]"
				if err != nil {
					reason = "upstream stream read failed: " + err.Error()
				}
				return r.fail(sw, ident, reason)
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.inactivity)

			done, err := r.handleLine(line, sw, &forwarded, &dropped)
			if err != nil {
				return err
			}
			if done {
				r.logger.Debug("stream relay complete",
					"forwarded", forwarded,
					"dropped", dropped,
				)
				return nil
			}
		}
	}
}

// handleLine processes one logical line of the upstream stream. Only
// data-prefixed lines are meaningful; comments and keep-alives are
// discarded. It reports done=true once the [DONE] sentinel has been
// relayed.
func (r *Relay) handleLine(line string, sw *Writer, forwarded, dropped *int) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return false, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return false, nil
	}

	if payload == DoneSentinel {
		return true, sw.WriteDone()
	}

	if !gjson.Valid(payload) {
		// Malformed keep-alives and partial frames must not corrupt
		// the downstream stream.
		*dropped++
		r.logger.Debug("dropping malformed stream event", "payload_len", len(payload))
		return false, nil
	}

	if err := sw.WriteEvent([]byte(payload)); err != nil {
		return false, err
	}
	*forwarded++
	return false, nil
}

// fail terminates the downstream stream in-band and reports the
// protocol break to the caller.
func (r *Relay) fail(sw *Writer, ident StreamIdentity, reason string) error {
	if err := sw.WriteChunk(NewErrorChunk(ident.ID, ident.Created, ident.Model, reason)); err != nil {
		return err
	}
	if err := sw.WriteDone(); err != nil {
		return err
	}
	return &gateway.StreamProtocolError{Reason: reason}
}
