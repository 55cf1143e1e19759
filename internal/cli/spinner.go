package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/stampforge/pkg/observability"
)

// Spinner animates a one-line status while a conversion runs. The label may
// be changed from any goroutine.
type Spinner struct {
	w      io.Writer
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu    sync.Mutex
	label string
	width int // widest line drawn so far
}

func newSpinner(parent context.Context, w io.Writer, label string) *Spinner {
	ctx, cancel := context.WithCancel(parent)
	return &Spinner{
		w:      w,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		label:  label,
	}
}

// Start draws the first frame and keeps animating until Stop or until the
// context ends.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-ticker.C:
			}
		}
	}()
}

// SetLabel replaces the text next to the spinner.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Cancelled reports whether the parent context ended.
func (s *Spinner) Cancelled() bool {
	return s.parent.Err() != nil
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := frame + " " + s.label
	if n := len(line); n > s.width {
		s.width = n
	}
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.label))
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width+2))
}

// spinnerHooks shows the running pipeline stage on a spinner.
type spinnerHooks struct {
	observability.NoopPipelineHooks
	s      *Spinner
	prefix string
}

func (h spinnerHooks) OnStageStart(_ context.Context, stage string) {
	h.s.SetLabel(h.prefix + " · " + stage)
}
