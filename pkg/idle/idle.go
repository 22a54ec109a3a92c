// Package idle decides whether the daemon's host is deliberately idle, which
// turns its heartbeats into paused ones.
package idle

import (
	"context"
	"errors"
	"os/exec"

	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/benmeehan/link-failover/pkg/shell"
)

// Detector reports whether the host is idle.
type Detector interface {
	IsIdle(ctx context.Context) (bool, error)
}

// FlagFileDetector reports idle while a pause flag file exists. The
// `failover pause` and `failover resume` commands manage the file.
type FlagFileDetector struct {
	path    string
	fileOps file.FileOperations
}

func NewFlagFileDetector(path string, fileOps file.FileOperations) *FlagFileDetector {
	return &FlagFileDetector{path: path, fileOps: fileOps}
}

func (d *FlagFileDetector) IsIdle(context.Context) (bool, error) {
	if d.path == "" {
		return false, nil
	}
	return d.fileOps.IsFileExists(d.path)
}

// Pause creates the flag file.
func (d *FlagFileDetector) Pause() error {
	return d.fileOps.Touch(d.path)
}

// Resume removes the flag file.
func (d *FlagFileDetector) Resume() error {
	return d.fileOps.Remove(d.path)
}

// CommandDetector runs an external check; exit status 0 means idle and any
// other exit status means active.
type CommandDetector struct {
	command string
	runner  *shell.Runner
}

func NewCommandDetector(command string, runner *shell.Runner) *CommandDetector {
	return &CommandDetector{command: command, runner: runner}
}

func (d *CommandDetector) IsIdle(ctx context.Context) (bool, error) {
	_, err := d.runner.Run(ctx, d.command)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// Any reports idle when at least one detector does. Errors from individual
// detectors are joined and only returned when no detector reports idle.
type Any []Detector

func (a Any) IsIdle(ctx context.Context) (bool, error) {
	var errs []error
	for _, d := range a {
		idle, err := d.IsIdle(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if idle {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
