package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestChildSpansShareTrace(t *testing.T) {
	ctx, root := Start(context.Background(), "catalog.reload")
	if root.TraceID == "" {
		t.Fatal("root span needs a trace id")
	}

	var wg sync.WaitGroup
	for _, name := range []string{"load bulletins", "load filters", "load categories"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, child := Start(ctx, name)
			child.SetAttr("items", 3)
			child.End(nil)
		}(name)
	}
	wg.Wait()
	root.End(nil)

	children := root.Children()
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for _, c := range children {
		if c.TraceID != root.TraceID {
			t.Errorf("child %s has trace %s, want %s", c.Name, c.TraceID, root.TraceID)
		}
	}
	if FromContext(context.Background()) != nil {
		t.Error("empty context should carry no span")
	}
}

func TestEndOnlyOnce(t *testing.T) {
	_, s := Start(context.Background(), "op")
	s.End(errors.New("boom"))
	first := s.Duration()
	s.End(nil)
	if s.Duration() != first {
		t.Error("second End must not change the span")
	}
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "catalog.reload")
	_, child := Start(ctx, "load filters")
	child.End(errors.New("connection reset"))
	root.End(nil)
	root.Log(ctx, logger, slog.LevelDebug)

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("expected two span lines, got %q", out)
	}
	if !strings.Contains(out, "depth=1") || !strings.Contains(out, `error="connection reset"`) {
		t.Errorf("child line missing depth or error: %q", out)
	}

	buf.Reset()
	root.Log(ctx, logger, slog.LevelDebug-4)
	if buf.Len() != 0 {
		t.Error("disabled level should log nothing")
	}
}
