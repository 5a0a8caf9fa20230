// Package console reads human player responses from a terminal or any line
// oriented stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"

	"github.com/joeycumines/turnbench/internal/chat"
)

// NoMessage is shown when the history holds nothing to respond to.
const NoMessage = "Nothing has been said yet."

// Styles controls how prompts are rendered on a terminal.
type Styles struct {
	Header  lipgloss.Style
	Message lipgloss.Style
}

// DefaultStyles returns the styles used on terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Message: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// Console implements game.HumanInput.
type Console struct {
	in     io.Reader
	out    io.Writer
	fd     int
	isTerm bool
	lines  *bufio.Reader
	styles *Styles
}

// New creates a console reading from in and writing prompts to out. When in
// is a terminal, input is read with line editing.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{in: in, out: out, fd: -1}
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		c.fd = int(f.Fd())
		c.isTerm = term.IsTerminal(c.fd)
	}
	if c.isTerm {
		s := DefaultStyles()
		c.styles = &s
	} else {
		c.lines = bufio.NewReader(in)
	}
	return c
}

// Stdio returns a console on the process's standard streams.
func Stdio() *Console {
	return New(os.Stdin, os.Stdout)
}

// ReadResponse shows the latest message of history and reads one line.
// Cancellation is observed before and after the blocking read.
func (c *Console) ReadResponse(ctx context.Context, descriptor string, history []chat.Message, turn int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	latest := NoMessage
	if last, ok := chat.Last(history); ok {
		latest = last.Content
	}
	header := fmt.Sprintf("Latest message for %s (turn %d):", descriptor, turn)
	if c.styles != nil {
		header = c.styles.Header.Render(header)
		latest = c.styles.Message.Render(latest)
	}
	if _, err := fmt.Fprintf(c.out, "%s\n%s\n", header, latest); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	prompt := fmt.Sprintf("Your response as %s: ", descriptor)
	line, err := c.readLine(prompt)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return line, nil
}

func (c *Console) readLine(prompt string) (string, error) {
	if c.isTerm {
		return c.readTerminal(prompt)
	}
	if _, err := io.WriteString(c.out, prompt); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := c.lines.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no response: %w", io.ErrUnexpectedEOF)
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Console) readTerminal(prompt string) (string, error) {
	state, err := term.MakeRaw(c.fd)
	if err != nil {
		return "", fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer func() { _ = term.Restore(c.fd, state) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{c.in, c.out}, prompt)
	line, err := t.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no response: %w", io.ErrUnexpectedEOF)
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return line, nil
}
