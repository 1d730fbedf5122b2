package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ErrInterrupted is returned when the annotator aborts input (Ctrl+C, Esc, end of input)
var ErrInterrupted = errors.New("input interrupted")

// Completer returns the candidate completions for the text typed so far
type Completer func(text string) []string

// Prompter asks the annotator a question and returns the raw answer.
// complete may be nil when the question has no completions.
type Prompter interface {
	Ask(ctx context.Context, question string, complete Completer) (string, error)
}

// New returns a Terminal prompter when in is a terminal and a Line prompter otherwise
func New(in *os.File, out io.Writer) Prompter {
	fd := in.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return NewTerminal(in, out)
	}
	return NewLine(in, out)
}

// listSuffix typed at the end of an answer lists the completions of what precedes it
const listSuffix = "?"

type lineResult struct {
	text string
	err  error
}

// Line reads newline-terminated answers from a reader. It is used when stdin is
// not a terminal (pipes, tests, scripted sessions).
type Line struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan lineResult
	done  chan struct{}
	stop  sync.Once
}

// NewLine creates a line prompter reading from in and writing questions to out
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{
		in:    in,
		out:   out,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
}

// Close releases the reader goroutine. Input read after Close is dropped.
func (l *Line) Close() error {
	l.stop.Do(func() { close(l.done) })
	return nil
}

func (l *Line) send(res lineResult) bool {
	select {
	case l.lines <- res:
		return true
	case <-l.done:
		return false
	}
}

// read runs for the lifetime of the prompter so a cancelled Ask never loses input
func (l *Line) read() {
	defer close(l.lines)
	reader := bufio.NewReader(l.in)
	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			if !l.send(lineResult{text: strings.TrimRight(text, "\r\n")}) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.send(lineResult{err: err})
			}
			return
		}
	}
}

// Ask prints question and waits for a line or for ctx to be cancelled
func (l *Line) Ask(ctx context.Context, question string, complete Completer) (string, error) {
	l.once.Do(func() { go l.read() })

	for {
		select {
		case <-l.done:
			return "", ErrInterrupted
		default:
		}
		fmt.Fprintf(l.out, "%s ", question)

		var res lineResult
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return "", ErrInterrupted
		case <-l.done:
			fmt.Fprintln(l.out)
			return "", ErrInterrupted
		case res, ok = <-l.lines:
		}

		if !ok {
			fmt.Fprintln(l.out)
			return "", ErrInterrupted
		}
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}

		if complete != nil && strings.HasSuffix(res.text, listSuffix) {
			candidates := complete(strings.TrimSuffix(res.text, listSuffix))
			if len(candidates) == 0 {
				fmt.Fprintln(l.out, "  (no matches)")
			}
			for _, c := range candidates {
				fmt.Fprintf(l.out, "  %s\n", c)
			}
			continue
		}

		return res.text, nil
	}
}
