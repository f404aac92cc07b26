/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace materializes isolated, disposable working copies of the
// repositories under management. A pre-existing local checkout is copied,
// never operated on in place; otherwise the remote is shallow-cloned.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	"github.com/templatetools/driftmgr/cmdrunner"
	"github.com/templatetools/driftmgr/registry"
)

const workspaceDirPrefix = "driftmgr-ws-"

var (
	// ErrClone indicates the remote could not be cloned.
	ErrClone = errors.New("clone failed")

	// ErrLocalCopy indicates a configured local checkout could not be copied.
	ErrLocalCopy = errors.New("local copy failed")
)

// Workspace is one repository's disposable working copy. Head carries the
// checked-out commit when the copy is a git repository, best effort.
type Workspace struct {
	Path string
	Head string

	root string
}

// Discard removes the workspace's backing directory. It is safe to call on
// every exit path, including after acquisition failures.
func (w *Workspace) Discard() {
	if w == nil || w.root == "" {
		return
	}
	os.RemoveAll(w.root)
	w.root = ""
}

// Manager acquires workspaces through the command runner.
type Manager struct {
	runner cmdrunner.Runner
}

// NewManager constructs a Manager.
func NewManager(runner cmdrunner.Runner) *Manager {
	return &Manager{runner: runner}
}

// Acquire materializes a working copy for repo into a fresh temporary
// location owned by the caller, who must Discard it when done. If the
// binding names a local path that exists, the checkout is copied; otherwise
// the remote is cloned shallowly to minimize transfer.
func (m *Manager) Acquire(ctx context.Context, repo registry.Repository) (*Workspace, error) {
	root, err := os.MkdirTemp("", workspaceDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	ws := &Workspace{
		Path: filepath.Join(root, repo.Name),
		root: root,
	}

	if repo.LocalPath != "" {
		if _, statErr := os.Stat(repo.LocalPath); statErr == nil {
			if err := copyCheckout(repo.LocalPath, ws.Path); err != nil {
				ws.Discard()
				return nil, fmt.Errorf("%w: %v", ErrLocalCopy, err)
			}
			ws.Head = headCommit(ctx, ws.Path)
			return ws, nil
		}
		clog.WarnContextf(ctx, "Local path %s for %s does not exist, falling back to clone", repo.LocalPath, repo.Name)
	}

	url := fmt.Sprintf("https://github.com/%s.git", repo.GitHub)
	clog.InfoContextf(ctx, "Cloning %s into %s", url, ws.Path)

	res, err := m.runner.Run(ctx, "", "git", "clone", "--depth=1", url, ws.Path)
	if err != nil {
		ws.Discard()
		return nil, fmt.Errorf("%w: %v", ErrClone, err)
	}
	if res.Status != 0 {
		ws.Discard()
		return nil, fmt.Errorf("%w: git exited %d: %s", ErrClone, res.Status, res.Stderr)
	}

	ws.Head = headCommit(ctx, ws.Path)
	return ws, nil
}

func copyCheckout(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	return os.CopyFS(dst, os.DirFS(src))
}

// headCommit resolves the checked-out commit of a workspace. Workspaces are
// occasionally plain directories (local copies under test, failed partial
// clones), so failure here only degrades logging detail.
func headCommit(ctx context.Context, path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		clog.DebugContextf(ctx, "Not a git repository at %s: %v", path, err)
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		clog.DebugContextf(ctx, "Resolving HEAD at %s: %v", path, err)
		return ""
	}
	return head.Hash().String()
}
