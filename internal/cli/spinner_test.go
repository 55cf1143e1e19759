package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerDrawsLabel(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Converting logo.png")
	s.Start()
	s.Stop()

	if !strings.Contains(buf.String(), "Converting logo.png") {
		t.Errorf("output %q does not contain the label", buf.String())
	}
	if s.Cancelled() {
		t.Error("Stop is not a cancellation")
	}
}

func TestSpinnerStageHooks(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Converting a.png")
	h := spinnerHooks{s: s, prefix: "Converting a.png"}

	h.OnStageStart(context.Background(), "extrude")
	s.mu.Lock()
	label := s.label
	s.mu.Unlock()
	if !strings.HasSuffix(label, "extrude") {
		t.Errorf("label = %q, want the stage name", label)
	}

	// The other hooks are no-ops.
	h.OnStageComplete(context.Background(), "extrude", time.Millisecond, nil)
	h.OnConvertComplete(context.Background(), "a.png", 10, time.Millisecond, nil)
}

func TestSpinnerParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	s := newSpinner(ctx, &buf, "waiting")
	s.Start()
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("spinner did not stop after cancel")
	}
	if !s.Cancelled() {
		t.Error("Cancelled() = false after the parent was cancelled")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "x")
	s.Start()
	s.Stop()
	s.Stop()
}
