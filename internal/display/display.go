package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// Sink receives the path of each image the annotator should see.
// Calls are fire-and-forget; no acknowledgement is read back.
type Sink interface {
	Display(path string)
}

// Nop discards every path
type Nop struct{}

func (Nop) Display(string) {}

// DefaultBuffer is the number of paths queued before Display blocks
const DefaultBuffer = 16

// Stream writes one path per line to a writer from a single goroutine,
// preserving the order in which paths were sent.
type Stream struct {
	paths chan string
	done  chan struct{}
	// closing is closed when Close starts so a blocked Display gives up
	closing chan struct{}
	w       io.WriteCloser

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool

	errMu sync.Mutex
	err   error
}

// NewStream starts draining paths into w
func NewStream(w io.WriteCloser, buffer int) *Stream {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	s := &Stream{
		paths:   make(chan string, buffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		w:       w,
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for path := range s.paths {
		if s.failed() {
			continue
		}
		if _, err := fmt.Fprintln(s.w, path); err != nil {
			slog.Warn("Unable to send image to viewer", "path", path, "err", err)
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
		}
	}
}

func (s *Stream) failed() bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err != nil
}

// Display queues path for the viewer. It only blocks when the buffer is full.
func (s *Stream) Display(path string) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.paths <- path:
	case <-s.closing:
		slog.Debug("Viewer closing, image dropped", "path", path)
	}
}

// Close flushes queued paths and closes the writer
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.paths)
	s.closeMu.Unlock()

	<-s.done

	if err := s.w.Close(); err != nil {
		return err
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Viewer is an external image viewer process fed through its stdin
type Viewer struct {
	*Stream
	cmd *exec.Cmd
}

// StartViewer launches command and returns a sink streaming paths to it
func StartViewer(ctx context.Context, command []string) (*Viewer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("viewer command is empty")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open viewer stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start viewer %q: %w", command[0], err)
	}

	slog.Debug("Viewer started", "command", command, "pid", cmd.Process.Pid)

	return &Viewer{
		Stream: NewStream(stdin, DefaultBuffer),
		cmd:    cmd,
	}, nil
}

// Close ends the stream and waits for the viewer to exit
func (v *Viewer) Close() error {
	streamErr := v.Stream.Close()
	if err := v.cmd.Wait(); err != nil {
		slog.Debug("Viewer exited", "err", err)
	}
	return streamErr
}
