package core

import (
	"context"
	"encoding/json"
	"flightcore/pkg/domain"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEntry is one finished span emitted by JSONTracer.
type TraceEntry struct {
	SpanID     string    `json:"span_id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	BlockCause string    `json:"block_cause,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes finished spans as JSON lines and retains them for inspection.
type JSONTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTracer{
		enc: enc,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{
		tracer:    t,
		id:        uuid.NewString(),
		operation: operation,
		started:   t.now(),
	}
}

type jsonSpan struct {
	tracer    *JSONTracer
	id        string
	operation string
	started   time.Time
	once      sync.Once
}

func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		ended := s.tracer.now()
		entry := TraceEntry{
			SpanID:     s.id,
			Operation:  s.operation,
			Status:     "success",
			DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
			StartedAt:  s.started,
			EndedAt:    ended,
		}
		if err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
			if cause, ok := domain.BlockCauseOf(err); ok {
				entry.Status = "blocked"
				entry.BlockCause = string(cause)
			}
		}
		s.tracer.mu.Lock()
		defer s.tracer.mu.Unlock()
		s.tracer.entries = append(s.tracer.entries, entry)
		if s.tracer.enc != nil {
			_ = s.tracer.enc.Encode(entry)
		}
	})
}
