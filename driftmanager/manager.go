/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

package driftmanager

import (
	"context"
	"errors"
	"sort"

	"github.com/chainguard-dev/clog"
	"github.com/templatetools/driftmgr/driftcheck"
	"github.com/templatetools/driftmgr/registry"
	"github.com/templatetools/driftmgr/updater"
	"github.com/templatetools/driftmgr/workspace"
	"golang.org/x/sync/errgroup"
)

// Workspaces acquires one disposable working copy per repository.
type Workspaces interface {
	Acquire(ctx context.Context, repo registry.Repository) (*workspace.Workspace, error)
}

// Detector classifies a workspace against its template.
type Detector interface {
	Check(ctx context.Context, dir string) (driftcheck.Result, error)
}

// Applier applies a template update to a workspace classified as behind.
type Applier interface {
	Apply(ctx context.Context, repo registry.Repository, dir string, check driftcheck.Result) updater.Outcome
}

// Searcher finds repositories referencing a template across the hosting
// service.
type Searcher interface {
	SearchTemplateRepos(ctx context.Context, templateName string) []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithConcurrency sets how many repositories are processed at once. The
// default of 1 preserves sequential processing; higher values are safe
// because no mutable state crosses repository boundaries.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithSearcher installs the hosting-search capability used by Scan.
func WithSearcher(s Searcher) Option {
	return func(m *Manager) {
		m.searcher = s
	}
}

// Manager drives the per-repository pipeline over a loaded registry.
type Manager struct {
	reg        *registry.Registry
	workspaces Workspaces
	detector   Detector
	applier    Applier
	searcher   Searcher

	concurrency int
}

// New constructs a Manager over reg.
func New(reg *registry.Registry, ws Workspaces, det Detector, app Applier, opts ...Option) *Manager {
	m := &Manager{
		reg:         reg,
		workspaces:  ws,
		detector:    det,
		applier:     app,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes every registered repository and returns exactly one outcome
// per binding, in registry order, regardless of how many individually fail.
// With dryRun set, repositories are only classified; nothing is mutated.
func (m *Manager) Run(ctx context.Context, dryRun bool) []updater.Outcome {
	outcomes := make([]updater.Outcome, len(m.reg.Repositories))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, repo := range m.reg.Repositories {
		g.Go(func() error {
			outcomes[i] = m.processOne(ctx, repo, dryRun)
			return nil
		})
	}
	// Workers never return errors; every failure is folded into its
	// repository's outcome.
	_ = g.Wait()

	return outcomes
}

func (m *Manager) processOne(ctx context.Context, repo registry.Repository, dryRun bool) updater.Outcome {
	log := clog.FromContext(ctx).With("repo", repo.Name)
	ctx = clog.WithLogger(ctx, log)

	log.Infof("Processing %s (%s)", repo.Name, repo.GitHub)

	ws, err := m.workspaces.Acquire(ctx, repo)
	if err != nil {
		return updater.Outcome{
			Repo:    repo,
			Success: false,
			Error:   acquireFailureMessage(err),
			Stage:   updater.StageDetecting,
		}
	}
	defer ws.Discard()

	check, err := m.detector.Check(ctx, ws.Path)
	if err != nil {
		return updater.Outcome{
			Repo:    repo,
			Success: false,
			Error:   "Drift check failed: " + err.Error(),
			Stage:   updater.StageDetecting,
		}
	}

	if !check.HasBinding {
		// Unmanaged, not broken.
		return updater.Outcome{
			Repo:    repo,
			Success: true,
			Stage:   updater.StageDone,
		}
	}

	if dryRun {
		state := "up to date"
		if check.NeedsUpdate {
			state = "needs update"
		}
		log.Infof("[DRY RUN] %s: %s", repo.Name, state)
		return updater.Outcome{
			Repo:        repo,
			Success:     true,
			NeedsUpdate: check.NeedsUpdate,
			OldCommit:   check.PriorRevision,
			Changes:     check.ChangeLines,
			Stage:       updater.StageDetecting,
		}
	}

	if !check.NeedsUpdate {
		log.Infof("No updates needed for %s", repo.Name)
		return updater.Outcome{
			Repo:      repo,
			Success:   true,
			OldCommit: check.PriorRevision,
			Stage:     updater.StageDone,
		}
	}

	return m.applier.Apply(ctx, repo, ws.Path, check)
}

// Scan searches the hosting service for repositories generated from each
// registered template, returning template name → distinct repository
// identifiers. Search failures surface as empty slices, never errors.
func (m *Manager) Scan(ctx context.Context) map[string][]string {
	found := make(map[string][]string, len(m.reg.Templates))

	names := make([]string, 0, len(m.reg.Templates))
	for name := range m.reg.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if m.searcher == nil {
			clog.WarnContextf(ctx, "No hosting client configured, skipping scan for %s", name)
			found[name] = nil
			continue
		}
		clog.InfoContextf(ctx, "Scanning for repositories using template %s", name)
		repos := m.searcher.SearchTemplateRepos(ctx, name)
		clog.InfoContextf(ctx, "Found %d repositories using %s", len(repos), name)
		for _, r := range repos {
			clog.InfoContextf(ctx, "  - %s", r)
		}
		found[name] = repos
	}

	return found
}

func acquireFailureMessage(err error) string {
	switch {
	case errors.Is(err, workspace.ErrClone):
		return "Failed to clone repository"
	case errors.Is(err, workspace.ErrLocalCopy):
		return "Failed to copy local checkout"
	default:
		return err.Error()
	}
}
