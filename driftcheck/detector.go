/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package driftcheck classifies a workspace against its template: unmanaged,
// up to date, or behind. Drift is signalled by the external check command's
// exit status; this package never mutates the workspace.
package driftcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/templatetools/driftmgr/cmdrunner"
)

// BindingStateFile is the downstream repository's record of the template
// revision it was generated from. Written only by the external update
// tooling; this orchestrator reads it.
const BindingStateFile = ".cruft.json"

// maxChangeLines caps the captured diff so reports stay finite.
const maxChangeLines = 50

// BindingState is the parsed contents of the binding state file.
type BindingState struct {
	Commit  string         `json:"commit"`
	Context map[string]any `json:"context"`
}

// Result is the classification of one workspace.
type Result struct {
	// HasBinding is false when the workspace carries no binding state at
	// all; such repositories are unmanaged and are skipped, not errored.
	HasBinding bool

	// NeedsUpdate is true when the check command signalled available drift.
	NeedsUpdate bool

	// PriorRevision is the template revision recorded in the binding state.
	PriorRevision string

	// ChangeLines is the captured diff, truncated to maxChangeLines.
	ChangeLines []string
}

// Detector runs the external drift-check tooling in a workspace.
type Detector struct {
	runner cmdrunner.Runner
}

// NewDetector constructs a Detector.
func NewDetector(runner cmdrunner.Runner) *Detector {
	return &Detector{runner: runner}
}

// ReadBindingState reads and parses the binding state file in dir. A missing
// file returns (nil, nil): absence means unmanaged, not broken.
func ReadBindingState(dir string) (*BindingState, error) {
	data, err := os.ReadFile(filepath.Join(dir, BindingStateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", BindingStateFile, err)
	}

	var state BindingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", BindingStateFile, err)
	}
	return &state, nil
}

// Check classifies the workspace at dir. A nonzero status from the check
// command is the drift signal, not a detector failure; a detector failure is
// the check command not running at all.
func (d *Detector) Check(ctx context.Context, dir string) (Result, error) {
	state, err := ReadBindingState(dir)
	if err != nil {
		return Result{}, err
	}
	if state == nil {
		clog.InfoContextf(ctx, "No %s found, repository is unmanaged", BindingStateFile)
		return Result{}, nil
	}

	res := Result{
		HasBinding:    true,
		PriorRevision: state.Commit,
	}

	check, err := d.runner.Run(ctx, dir, "cruft", "check")
	if err != nil {
		return res, fmt.Errorf("drift check: %w", err)
	}
	if check.Status == 0 {
		return res, nil
	}

	res.NeedsUpdate = true
	clog.InfoContextf(ctx, "Template updates available")

	diff, err := d.runner.Run(ctx, dir, "cruft", "diff")
	if err != nil {
		// The drift signal stands even when the diff cannot be captured.
		clog.WarnContextf(ctx, "Capturing diff: %v", err)
		return res, nil
	}
	res.ChangeLines = truncateLines(diff.Stdout, maxChangeLines)

	return res, nil
}

func truncateLines(s string, n int) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}
