// Package shell runs operator-supplied commands through /bin/sh with a
// deadline and a cap on captured output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrTimeout is returned when a command outlives its execution limit.
var ErrTimeout = errors.New("command execution timed out")

// Runner executes shell commands.
type Runner struct {
	maxExecutionTime time.Duration
	outputSizeLimit  int
	logger           zerolog.Logger
}

// NewRunner creates a Runner. Non-positive limits fall back to the defaults.
func NewRunner(maxExecutionTime time.Duration, outputSizeLimit int, logger zerolog.Logger) *Runner {
	if maxExecutionTime <= 0 {
		maxExecutionTime = 30 * time.Second
	}
	if outputSizeLimit <= 0 {
		outputSizeLimit = 64 * 1024
	}
	return &Runner{
		maxExecutionTime: maxExecutionTime,
		outputSizeLimit:  outputSizeLimit,
		logger:           logger,
	}
}

// Run executes cmd and returns its trimmed stdout. On failure the returned
// error carries the command's stderr.
func (r *Runner) Run(ctx context.Context, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", errors.New("empty command")
	}
	r.logger.Debug().Str("command", cmd).Msg("Executing shell command")

	ctx, cancel := context.WithTimeout(ctx, r.maxExecutionTime)
	defer cancel()

	stdout := &limitedBuffer{limit: r.outputSizeLimit}
	stderr := &limitedBuffer{limit: r.outputSizeLimit}

	command := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	command.Stdout = stdout
	command.Stderr = stderr
	// children that inherit the pipes must not hold Run open past the deadline
	command.WaitDelay = time.Second

	if err := command.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.logger.Error().Str("command", cmd).Dur("limit", r.maxExecutionTime).Msg("Command execution timed out")
			return "", ErrTimeout
		}
		msg := strings.TrimSpace(stderr.String())
		r.logger.Error().Err(err).Str("command", cmd).Str("stderr", msg).Msg("Command execution failed")
		if msg != "" {
			return stdout.String(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.String(), err
	}

	return strings.TrimSpace(stdout.String()), nil
}

// limitedBuffer keeps the first limit bytes and silently drops the rest so a
// chatty command cannot block on a full pipe.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
