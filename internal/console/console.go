// Package console is a line-oriented terminal front-end for the chat
// controller.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/chat"
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/charmbracelet/lipgloss"
)

// InitialMessage is the first log entry of a console session.
const InitialMessage = "Console initialized. Type a query and press Enter. /quit or Ctrl-D exits."

// Console reads queries line by line and answers authorization prompts
// from the same input.
type Console struct {
	in     io.Reader
	out    io.Writer
	styles styles

	readOnce sync.Once
	lines    chan string
	readErr  error // set before lines is closed

	mu  sync.Mutex // serializes writes to out
	log *transcript.Log

	ctrl *chat.Controller
}

var (
	_ chat.View     = (*Console)(nil)
	_ chat.Prompter = (*Console)(nil)
)

// New creates a console driving agent.
func New(agent chat.Agent, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	c := &Console{
		in:     in,
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
		lines:  make(chan string),
	}
	c.log = transcript.New(transcript.SinkFunc(c.printEntry))
	c.ctrl = chat.NewController(agent, c, c, c.log, logger)
	return c
}

// Log returns the console transcript, e.g. to attach more sinks.
func (c *Console) Log() *transcript.Log {
	return c.log
}

// Controller returns the controller behind the console.
func (c *Console) Controller() *chat.Controller {
	return c.ctrl
}

// Run reads queries until EOF, /quit or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.log.Append(transcript.CategoryStatus, InitialMessage)

	for ctx.Err() == nil {
		c.printf("%s ", c.styles.prompt.Render(">"))
		line, ok := c.readLine(ctx)
		if !ok {
			c.printf("\n")
			if ctx.Err() != nil {
				return nil
			}
			return c.readErr
		}
		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		}
		c.ctrl.SendMessage(ctx, line)
	}
	return nil
}

// Confirm asks on the terminal; anything but y or yes denies.
func (c *Console) Confirm(ctx context.Context, req chat.ConfirmRequest) (bool, error) {
	c.printf("%s\n%s ", c.styles.confirm.Render(req.Prompt), c.styles.prompt.Render("[y/N]"))
	line, ok := c.readLine(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if c.readErr != nil {
			return false, fmt.Errorf("read answer: %w", c.readErr)
		}
		return false, io.ErrUnexpectedEOF
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// SetOutput prints the agent's answer; empty text clears nothing on a
// terminal and is skipped.
func (c *Console) SetOutput(text string) {
	if text == "" {
		return
	}
	c.printf("%s\n", c.styles.output.Render(text))
}

// SetSubmitEnabled is a no-op: the REPL only reads the next query once the
// previous one resolved.
func (c *Console) SetSubmitEnabled(bool) {}

// ClearInput is a no-op: a consumed line is already gone.
func (c *Console) ClearInput() {}

func (c *Console) printEntry(e transcript.Entry) {
	c.printf("%s\n", c.styles.forCategory(e.Category).Render(e.Message))
}

// readLine returns the next input line. Input is scanned on its own
// goroutine so a cancelled ctx unblocks a pending read.
func (c *Console) readLine(ctx context.Context) (string, bool) {
	c.readOnce.Do(func() {
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
			c.readErr = scanner.Err()
		}()
	})

	select {
	case line, ok := <-c.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}
