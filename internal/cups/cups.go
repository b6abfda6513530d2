// Package cups sends raw ESC/POS jobs to a printer queue through the CUPS
// command line tools.
package cups

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrPrinterNotFound = errors.New("printer not found")

type runFunc func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

type Connector struct {
	Printer string
	run     runFunc
}

func New(printer string) *Connector {
	return &Connector{Printer: printer, run: runCommand}
}

// Available reports ErrPrinterNotFound unless `lpstat -p` lists the queue.
func (c *Connector) Available(ctx context.Context) error {
	out, err := c.run(ctx, nil, "lpstat", "-p")
	if err != nil {
		return fmt.Errorf("%w: %s: lpstat: %v", ErrPrinterNotFound, c.Printer, err)
	}
	if c.Printer == "" || !strings.Contains(strings.ToLower(string(out)), strings.ToLower(c.Printer)) {
		return fmt.Errorf("%w: %s", ErrPrinterNotFound, c.Printer)
	}
	return nil
}

// Send submits data as a single raw job.
func (c *Connector) Send(ctx context.Context, data []byte) error {
	out, err := c.run(ctx, data, "lp", "-d", c.Printer, "-o", "raw")
	if err != nil {
		return fmt.Errorf("lp %s: %w (%s)", c.Printer, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.CombinedOutput()
}
