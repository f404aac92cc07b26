/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/templatetools/driftmgr/registry"
)

func TestMissingRegistryFails(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--registry", filepath.Join(t.TempDir(), "absent.yaml")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if !errors.Is(err, registry.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestDryRunOverUnmanagedCheckout(t *testing.T) {
	checkout := t.TempDir()
	if err := os.WriteFile(filepath.Join(checkout, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	regPath := filepath.Join(t.TempDir(), "cruft_registry.yaml")
	regContent := fmt.Sprintf(`
templates:
  t: {url: https://example.com/t}
repositories:
  plain:
    template: t
    github: org/plain
    local_path: %s
`, checkout)
	if err := os.WriteFile(regPath, []byte(regContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--registry", regPath, "--dry-run"})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "# Template Drift Report") {
		t.Errorf("missing report header:\n%s", report)
	}
	if !strings.Contains(report, "- Total repositories: 1") {
		t.Errorf("missing summary count:\n%s", report)
	}
	if !strings.Contains(report, "### plain") {
		t.Errorf("missing detail block:\n%s", report)
	}
}

func TestResolveRegistryPathPrefersExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.yaml")
	if err := os.WriteFile(path, []byte("templates: {}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := resolveRegistryPath(path); got != path {
		t.Errorf("resolveRegistryPath = %q, want %q", got, path)
	}
}
