// Package tracing provides lightweight span trees carried through contexts.
// The catalog uses them to time each step of a reload (one span per source
// document) and logs the finished tree through slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is one timed operation. Children may be started concurrently.
type Span struct {
	Name    string
	TraceID string
	Start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	err      error
	attrs    []any
	children []*Span
}

// Start opens a span named name. When ctx already carries a span the new one
// becomes its child and shares its trace id; otherwise it is a root with a
// fresh trace id.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the span carried by ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches a key/value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, key, value)
}

// End closes the span, recording err if the operation failed. Only the first
// call has an effect.
func (s *Span) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.duration = time.Since(s.Start)
	s.err = err
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Children returns a copy of the child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants to logger at level, depth first.
func (s *Span) Log(ctx context.Context, logger *slog.Logger, level slog.Level) {
	if !logger.Enabled(ctx, level) {
		return
	}
	s.log(ctx, logger, level, 0)
}

func (s *Span) log(ctx context.Context, logger *slog.Logger, level slog.Level, depth int) {
	s.mu.Lock()
	args := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration_ms", s.duration.Milliseconds(),
	}
	if s.err != nil {
		args = append(args, "error", s.err)
	}
	args = append(args, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Log(ctx, level, "span", args...)
	for _, child := range children {
		child.log(ctx, logger, level, depth+1)
	}
}
