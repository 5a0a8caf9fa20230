package command

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/turnbench/internal/config"
)

// LogCommand prints the end of the log file and optionally follows it.
type LogCommand struct {
	*BaseCommand
	config *config.Config
	follow bool
	lines  int
	file   string
	poll   time.Duration
}

// NewLogCommand creates a new log command.
func NewLogCommand(cfg *config.Config) *LogCommand {
	return &LogCommand{
		BaseCommand: NewBaseCommand("log", "View and follow the log file", "log [tail] [options]"),
		config:      cfg,
		poll:        200 * time.Millisecond,
	}
}

// SetupFlags configures the flags for the log command.
func (c *LogCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.follow, "f", false, "Follow the log file (like tail -f)")
	fs.IntVar(&c.lines, "n", 10, "Number of lines to show from the end of the file")
	fs.StringVar(&c.file, "file", "", "Path to log file (overrides config log.file)")
}

// Execute runs the log command. "log tail" is "log -f".
func (c *LogCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "tail" {
		c.follow = true
		args = args[1:]
	}
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unknown subcommand: %s\n", args[0])
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}

	logPath := c.file
	if logPath == "" && c.config != nil {
		logPath = c.config.GetString(config.KeyLogFile)
	}
	if logPath == "" {
		_, _ = fmt.Fprintln(stderr, "No log file configured. Use -file or set log.file in config.")
		return errors.New("no log file configured")
	}

	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintf(stderr, "Log file does not exist: %s\n", logPath)
			return fmt.Errorf("log file not found: %s", logPath)
		}
		return fmt.Errorf("failed to open log file: %w", err)
	}

	for _, line := range lastLines(f, c.lines) {
		_, _ = fmt.Fprintln(stdout, line)
	}
	if !c.follow {
		return f.Close()
	}
	return c.followFile(ctx, f, logPath, stdout)
}

// lastLines returns up to n trailing lines of r, keeping only n in memory.
func lastLines(r io.Reader, n int) []string {
	if n <= 0 {
		return nil
	}
	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	total := min(count, n)
	out := make([]string, total)
	for i := range total {
		out[i] = ring[(count-total+i)%n]
	}
	return out
}

// followFile prints lines appended to f until ctx is done. When the path
// stops naming f, as after a rotation, the new file is read from the start.
func (c *LogCommand) followFile(ctx context.Context, f *os.File, logPath string, stdout io.Writer) error {
	defer func() { _ = f.Close() }()
	reader := bufio.NewReader(f)
	var partial strings.Builder

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		for {
			chunk, err := reader.ReadString('\n')
			partial.WriteString(chunk)
			if err != nil {
				break
			}
			_, _ = fmt.Fprintln(stdout, strings.TrimSuffix(partial.String(), "\n"))
			partial.Reset()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if rotated(f, logPath) {
			next, err := os.Open(logPath)
			if err != nil {
				continue
			}
			_ = f.Close()
			f = next
			reader = bufio.NewReader(f)
			partial.Reset()
		}
	}
}

// rotated reports whether logPath now names a different or truncated file.
func rotated(f *os.File, logPath string) bool {
	pathInfo, err := os.Stat(logPath)
	if err != nil {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return true
	}
	if !os.SameFile(pathInfo, fileInfo) {
		return true
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	return err == nil && pathInfo.Size() < pos
}
