/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

package updater

import "github.com/templatetools/driftmgr/registry"

// Stage identifies how far a repository's update progressed. Stages advance
// strictly left to right; a failure freezes the outcome at its stage.
type Stage string

const (
	StageDetecting  Stage = "detecting"
	StageBranching  Stage = "branching"
	StageUpdating   Stage = "updating"
	StageCommitting Stage = "committing"
	StagePushing    Stage = "pushing"
	StagePRCreating Stage = "pr-creating"
	StageDone       Stage = "done"
)

// Outcome is the result of processing one repository binding. Exactly one is
// produced per binding per run. Success is false if and only if Error is
// non-empty; a PRURL is only ever set on a successful outcome that needed an
// update.
type Outcome struct {
	Repo        registry.Repository
	Success     bool
	NeedsUpdate bool
	OldCommit   string
	NewCommit   string
	PRURL       string
	Error       string
	Stage       Stage
	Changes     []string
}

// Fail marks the outcome failed at its current stage.
func (o *Outcome) Fail(msg string) {
	o.Success = false
	o.Error = msg
}
