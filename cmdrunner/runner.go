/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

package cmdrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// Result is the observable outcome of a command that was actually invoked.
type Result struct {
	Status int
	Stdout string
	Stderr string
}

// Runner is the single capability through which every component reaches
// external tooling. Run returns a non-nil error only when the tool could not
// be invoked at all (missing binary, timeout, cancelled context); a nonzero
// exit code from a tool that ran is reported through Result.Status, since
// several of the tools we drive use the exit code as a signal rather than a
// failure.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (Result, error)
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout bounds each invocation. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	timeout time.Duration
}

// New constructs an ExecRunner.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes name with args in dir, capturing stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	clog.DebugContextf(ctx, "Running: %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("running %s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Status = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running %s: %w", name, err)
	}

	return res, nil
}
