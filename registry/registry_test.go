/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cruft_registry.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeRegistry(t, `
templates:
  python-template:
    url: https://github.com/example/cookiecutter-python-template

settings:
  branch_prefix: template/update
  pr_title_template: "chore: sync template"

repositories:
  service-a:
    template: python-template
    github: example/service-a
  service-b:
    template: python-template
    github: example/service-b
    auto_update: false
    branch_prefix: custom/prefix
    local_path: /src/service-b
`)

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []Repository{{
		Name:         "service-a",
		Template:     "python-template",
		GitHub:       "example/service-a",
		AutoUpdate:   true,
		BranchPrefix: "template/update",
	}, {
		Name:         "service-b",
		Template:     "python-template",
		GitHub:       "example/service-b",
		LocalPath:    "/src/service-b",
		AutoUpdate:   false,
		BranchPrefix: "custom/prefix",
	}}
	if diff := cmp.Diff(want, reg.Repositories); diff != "" {
		t.Errorf("Repositories mismatch (-want +got):\n%s", diff)
	}

	if got := reg.Settings.PRTitleTemplate; got != "chore: sync template" {
		t.Errorf("PRTitleTemplate = %q", got)
	}
	if reg.Settings.PRBodyTemplate != DefaultPRBodyTemplate {
		t.Errorf("expected default PR body template")
	}
}

func TestLoadPreservesDocumentOrder(t *testing.T) {
	path := writeRegistry(t, `
templates:
  t: {url: https://example.com/t}
repositories:
  zulu: {template: t, github: org/zulu}
  alpha: {template: t, github: org/alpha}
  mike: {template: t, github: org/mike}
`)

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var names []string
	for _, r := range reg.Repositories {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"zulu", "alpha", "mike"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeRegistry(t, "templates: [not: {a mapping\n")
	_, err := Load(path)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestLoadUnknownTemplate(t *testing.T) {
	path := writeRegistry(t, `
templates:
  t: {url: https://example.com/t}
repositories:
  repo: {template: missing, github: org/repo}
`)
	_, err := Load(path)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeRegistry(t, `
templates:
  t: {url: https://example.com/t}
repositories:
  repo: {template: t, github: org/repo}
`)

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := reg.Settings.BranchPrefix; got != DefaultBranchPrefix {
		t.Errorf("BranchPrefix = %q, want %q", got, DefaultBranchPrefix)
	}
	if got := reg.Repositories[0].BranchPrefix; got != DefaultBranchPrefix {
		t.Errorf("repo BranchPrefix = %q, want %q", got, DefaultBranchPrefix)
	}
	if !reg.Repositories[0].AutoUpdate {
		t.Errorf("AutoUpdate should default to true")
	}
}
