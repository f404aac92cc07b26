/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package updater drives the branch/update/commit/push/PR sequence for a
// repository that has fallen behind its template. The sequence is a strict
// linear state machine: a failed stage short-circuits the rest, and side
// effects of completed stages (including a pushed branch) are never rolled
// back.
package updater

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/templatetools/driftmgr/cmdrunner"
	"github.com/templatetools/driftmgr/driftcheck"
	"github.com/templatetools/driftmgr/registry"
)

// maxPRBodyChangeLines caps the change lines embedded in a PR body.
const maxPRBodyChangeLines = 20

// PullRequester opens a pull request against a repository's main branch and
// returns its URL.
type PullRequester interface {
	CreatePullRequest(ctx context.Context, ownerRepo, head, base, title, body string) (string, error)
}

// PRData is the payload the PR title and body templates render against.
type PRData struct {
	TemplateName string
	OldCommit    string
	NewCommit    string
	Changes      string
}

// Option configures an Applier.
type Option func(*Applier)

// WithClock overrides the clock used to derive branch names.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		a.now = now
	}
}

// Applier applies template updates to workspaces classified as behind.
type Applier struct {
	runner    cmdrunner.Runner
	pr        PullRequester
	titleTmpl *template.Template
	bodyTmpl  *template.Template
	now       func() time.Time
}

// NewApplier constructs an Applier. pr may be nil, in which case the
// PR-creation stage fails per repository without affecting earlier stages.
func NewApplier(runner cmdrunner.Runner, pr PullRequester, settings registry.Settings, opts ...Option) (*Applier, error) {
	titleTmpl, err := template.New("pr-title").Parse(settings.PRTitleTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing PR title template: %w", err)
	}
	bodyTmpl, err := template.New("pr-body").Parse(settings.PRBodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing PR body template: %w", err)
	}

	a := &Applier{
		runner:    runner,
		pr:        pr,
		titleTmpl: titleTmpl,
		bodyTmpl:  bodyTmpl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Apply runs the update sequence for repo in the workspace at dir. Drift
// must already have been detected; check carries the detection result. When
// the binding's auto-update flag is off, Apply returns a skip-by-policy
// outcome without touching the workspace.
func (a *Applier) Apply(ctx context.Context, repo registry.Repository, dir string, check driftcheck.Result) Outcome {
	outcome := Outcome{
		Repo:        repo,
		Success:     true,
		NeedsUpdate: check.NeedsUpdate,
		OldCommit:   check.PriorRevision,
		Changes:     check.ChangeLines,
		Stage:       StageDetecting,
	}

	if !check.NeedsUpdate {
		outcome.Stage = StageDone
		return outcome
	}

	if !repo.AutoUpdate {
		clog.InfoContextf(ctx, "Auto-update disabled for %s, skipping", repo.Name)
		outcome.Stage = StageDone
		return outcome
	}

	outcome.Stage = StageBranching
	branch := fmt.Sprintf("%s-%s", repo.BranchPrefix, a.now().Format("20060102"))
	if msg, ok := a.git(ctx, dir, "checkout", "-b", branch); !ok {
		outcome.Fail(fmt.Sprintf("Failed to create branch: %s", msg))
		return outcome
	}

	outcome.Stage = StageUpdating
	update, err := a.runner.Run(ctx, dir, "cruft", "update", "--skip-apply-ask", "-y")
	if err != nil {
		outcome.Fail(fmt.Sprintf("Cruft update failed: %v", err))
		return outcome
	}
	if update.Status != 0 {
		outcome.Fail(fmt.Sprintf("Cruft update failed: %s", strings.TrimSpace(update.Stderr)))
		return outcome
	}

	// The update command rewrote the binding state; capture the revision we
	// moved to.
	if state, err := driftcheck.ReadBindingState(dir); err != nil {
		clog.WarnContextf(ctx, "Reading binding state after update: %v", err)
	} else if state != nil {
		outcome.NewCommit = state.Commit
	}

	outcome.Stage = StageCommitting
	status, err := a.runner.Run(ctx, dir, "git", "status", "--porcelain")
	if err != nil || status.Status != 0 {
		outcome.Fail(fmt.Sprintf("Failed to inspect working tree: %s", runFailure(status, err)))
		return outcome
	}
	if strings.TrimSpace(status.Stdout) == "" {
		// The update ran but produced no diff; the repository was already
		// current.
		clog.InfoContextf(ctx, "No changes after update for %s", repo.Name)
		outcome.NeedsUpdate = false
		outcome.Stage = StageDone
		return outcome
	}

	if msg, ok := a.git(ctx, dir, "add", "-A"); !ok {
		outcome.Fail(fmt.Sprintf("Failed to stage changes: %s", msg))
		return outcome
	}
	if msg, ok := a.git(ctx, dir, "commit", "-m", commitMessage(outcome.OldCommit, outcome.NewCommit)); !ok {
		outcome.Fail(fmt.Sprintf("Failed to commit changes: %s", msg))
		return outcome
	}

	outcome.Stage = StagePushing
	if msg, ok := a.git(ctx, dir, "push", "-u", "origin", branch); !ok {
		// The local branch and commit stay in place; rollback of completed
		// stages is out of scope.
		outcome.Fail(fmt.Sprintf("Failed to push branch: %s", msg))
		return outcome
	}

	outcome.Stage = StagePRCreating
	url, err := a.createPullRequest(ctx, repo, branch, &outcome)
	if err != nil {
		// The update is applied and pushed; only the PR is missing.
		outcome.Fail(fmt.Sprintf("Failed to create PR: %v", err))
		return outcome
	}
	outcome.PRURL = url
	outcome.Stage = StageDone

	clog.InfoContextf(ctx, "Created PR for %s: %s", repo.Name, url)
	return outcome
}

func (a *Applier) createPullRequest(ctx context.Context, repo registry.Repository, branch string, outcome *Outcome) (string, error) {
	if a.pr == nil {
		return "", fmt.Errorf("no hosting client configured")
	}

	changes := "See diff"
	if len(outcome.Changes) > 0 {
		lines := outcome.Changes
		if len(lines) > maxPRBodyChangeLines {
			lines = lines[:maxPRBodyChangeLines]
		}
		changes = strings.Join(lines, "\n")
	}

	data := PRData{
		TemplateName: repo.Template,
		OldCommit:    orUnknown(outcome.OldCommit),
		NewCommit:    orUnknown(outcome.NewCommit),
		Changes:      changes,
	}

	var title, body strings.Builder
	if err := a.titleTmpl.Execute(&title, data); err != nil {
		return "", fmt.Errorf("rendering PR title: %w", err)
	}
	if err := a.bodyTmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("rendering PR body: %w", err)
	}

	return a.pr.CreatePullRequest(ctx, repo.GitHub, branch, "main", title.String(), body.String())
}

// git runs a git subcommand and folds spawn failures and nonzero exits into
// one presentable message.
func (a *Applier) git(ctx context.Context, dir string, args ...string) (string, bool) {
	res, err := a.runner.Run(ctx, dir, "git", args...)
	if err != nil {
		return err.Error(), false
	}
	if res.Status != 0 {
		return runFailure(res, nil), false
	}
	return "", true
}

func runFailure(res cmdrunner.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit status %d", res.Status)
}

func commitMessage(oldCommit, newCommit string) string {
	return fmt.Sprintf(`chore(deps): update from cookiecutter template

Template commit: %s → %s

Automated update by driftmgr.
`, shortRevision(oldCommit), shortRevision(newCommit))
}

func shortRevision(rev string) string {
	if rev == "" {
		return "unknown"
	}
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
