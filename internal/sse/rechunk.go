package sse

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/chuanqi87/agent/internal/gateway"
)

// Pause lengths of the synthetic typing cadence. Punctuation and
// whitespace get the longer pause.
const (
	DefaultPunctuationPause = 100 * time.Millisecond
	DefaultCharacterPause   = 30 * time.Millisecond
)

// CJK punctuation the cadence treats like ASCII punctuation.
const pausePunctuation = "，。！？、；：,.:;!? "

// Rechunker replays an already-complete reply as a synthetic
// per-character stream, for backends that cannot stream natively and
// for replies produced by the local tool loop. Content is split on
// rune boundaries, never mid-character.
type Rechunker struct {
	PunctuationPause time.Duration
	CharacterPause   time.Duration
}

// NewRechunker builds a rechunker with the default cadence.
func NewRechunker() *Rechunker {
	return &Rechunker{
		PunctuationPause: DefaultPunctuationPause,
		CharacterPause:   DefaultCharacterPause,
	}
}

// Stream emits text one character per chunk: a leading role chunk,
// the content chunks, one terminal chunk with finish_reason "stop",
// then [DONE]. Chunk id and created stay constant for the whole
// stream. Cancellation stops the replay immediately.
func (r *Rechunker) Stream(ctx context.Context, sw *Writer, ident StreamIdentity, text string) error {
	if err := sw.WriteChunk(r.chunk(ident, gateway.Delta{Role: gateway.RoleAssistant}, nil)); err != nil {
		return err
	}

	for _, char := range text {
		if err := sw.WriteChunk(r.chunk(ident, gateway.Delta{Content: string(char)}, nil)); err != nil {
			return err
		}
		if err := r.pause(ctx, char); err != nil {
			return err
		}
	}

	reason := gateway.FinishReasonStop
	if err := sw.WriteChunk(r.chunk(ident, gateway.Delta{}, &reason)); err != nil {
		return err
	}
	return sw.WriteDone()
}

func (r *Rechunker) chunk(ident StreamIdentity, delta gateway.Delta, finishReason *string) gateway.StreamChunk {
	return gateway.StreamChunk{
		ID:      ident.ID,
		Object:  gateway.ObjectChatCompletionChunk,
		Created: ident.Created,
		Model:   ident.Model,
		Choices: []gateway.StreamChoice{
			{Index: 0, Delta: delta, FinishReason: finishReason},
		},
	}
}

func (r *Rechunker) pause(ctx context.Context, char rune) error {
	d := r.CharacterPause
	if strings.ContainsRune(pausePunctuation, char) || unicode.IsSpace(char) {
		d = r.PunctuationPause
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
