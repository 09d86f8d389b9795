package providers

import (
	"context"
	"strings"
	"sync"
	"time"
)

// StreamAccumulator collects streamed text deltas into the final reply
type StreamAccumulator struct {
	mu sync.Mutex

	text   strings.Builder
	chunks int

	startTime time.Time
	lastChunk time.Time
}

// NewStreamAccumulator creates a new accumulator
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{startTime: time.Now()}
}

// Add accumulates a chunk
func (a *StreamAccumulator) Add(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.text.WriteString(chunk)
	a.chunks++
	a.lastChunk = time.Now()
}

// Text returns the accumulated text so far
func (a *StreamAccumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// ChunkCount returns the number of chunks received
func (a *StreamAccumulator) ChunkCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}

// Duration is the time between creation and the last chunk.
func (a *StreamAccumulator) Duration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastChunk.IsZero() {
		return 0
	}
	return a.lastChunk.Sub(a.startTime)
}

// StreamWithCallback streams through adapter when it supports incremental
// delivery. Otherwise the buffered reply is delivered as a single chunk.
func StreamWithCallback(ctx context.Context, adapter Adapter, call Call, onChunk func(chunk string) error) (string, error) {
	if s, ok := adapter.(StreamingAdapter); ok {
		return s.SendStream(ctx, call, onChunk)
	}

	text, err := adapter.Send(ctx, call)
	if err != nil {
		return "", err
	}
	if onChunk != nil && text != "" {
		if err := onChunk(text); err != nil {
			return text, err
		}
	}
	return text, nil
}
