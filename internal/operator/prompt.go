package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// PromptText is printed before every line is read.
const PromptText = "Press Q to quit"

// LineReader reads operator input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

// Prompt waits for the operator to type q.
type Prompt struct {
	rl        LineReader
	closeOnce sync.Once
}

// New opens a readline prompt on the terminal.
func New() (*Prompt, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return NewWithReader(rl), nil
}

// NewWithReader wraps an existing LineReader.
func NewWithReader(rl LineReader) *Prompt {
	return &Prompt{rl: rl}
}

// Stdout returns a writer that coordinates with the input line. Log
// output should go through it while the prompt is active.
func (p *Prompt) Stdout() io.Writer {
	return p.rl.Stdout()
}

// IsQuit reports whether line asks to quit.
func IsQuit(line string) bool {
	s := strings.TrimSpace(line)
	return s == "q" || s == "Q"
}

type readResult struct {
	line string
	err  error
}

// Wait blocks until the operator types q or Q, presses Ctrl-C, or ctx is
// done. Other lines are ignored and the prompt is shown again. When input
// ends (stdin is not a terminal) Wait keeps blocking until ctx is done.
func (p *Prompt) Wait(ctx context.Context) error {
	results := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	defer p.Close() //nolint:errcheck // Unblocks the reader goroutine

	go func() {
		for {
			fmt.Fprintln(p.rl.Stdout(), PromptText)
			line, err := p.rl.Readline()
			select {
			case results <- readResult{line: line, err: err}:
			case <-done:
				return
			}
			if err != nil || IsQuit(line) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			switch {
			case errors.Is(r.err, readline.ErrInterrupt):
				fmt.Fprintln(p.rl.Stdout(), "Quitting...")
				return nil
			case errors.Is(r.err, io.EOF):
				// Only a signal can stop the agent now.
				<-ctx.Done()
				return ctx.Err()
			case r.err != nil:
				return fmt.Errorf("reading operator input: %w", r.err)
			case IsQuit(r.line):
				fmt.Fprintln(p.rl.Stdout(), "Quitting...")
				return nil
			}
		}
	}
}

// Close releases the terminal. It is safe to call more than once.
func (p *Prompt) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.rl.Close()
	})
	return err
}
