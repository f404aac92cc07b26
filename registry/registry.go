/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package registry loads the declarative registry that binds downstream
// repositories to the templates they were generated from.
package registry

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBranchPrefix is used when neither a repository nor the settings
// block provides one.
const DefaultBranchPrefix = "cruft/template-update"

// Default PR templates, overridable through the settings block. Both are
// text/template sources; the updater supplies the data fields.
const (
	DefaultPRTitleTemplate = "chore: update from cookiecutter template"
	DefaultPRBodyTemplate  = `## Template update

Template: {{ .TemplateName }}

Commits: {{ .OldCommit }} → {{ .NewCommit }}

### Changes
{{ .Changes }}
`
)

var (
	// ErrConfiguration indicates the registry file could not be read at all.
	ErrConfiguration = errors.New("registry configuration error")

	// ErrParse indicates the registry file exists but is not well-formed.
	ErrParse = errors.New("registry parse error")
)

// Template describes a template known to the registry.
type Template struct {
	URL string `yaml:"url"`
}

// Settings holds registry-wide defaults.
type Settings struct {
	BranchPrefix    string `yaml:"branch_prefix"`
	PRTitleTemplate string `yaml:"pr_title_template"`
	PRBodyTemplate  string `yaml:"pr_body_template"`
}

// Repository is one downstream repository binding. It is immutable for the
// duration of a run; BranchPrefix is resolved once at load time.
type Repository struct {
	Name         string
	Template     string
	GitHub       string
	LocalPath    string
	AutoUpdate   bool
	BranchPrefix string
}

// Registry is the parsed registry document. Repositories preserves the
// document order of the repositories mapping, which is also the order
// outcomes are reported in.
type Registry struct {
	Templates    map[string]Template
	Settings     Settings
	Repositories []Repository
}

type repositorySpec struct {
	Template     string `yaml:"template"`
	GitHub       string `yaml:"github"`
	LocalPath    string `yaml:"local_path"`
	AutoUpdate   *bool  `yaml:"auto_update"`
	BranchPrefix string `yaml:"branch_prefix"`
}

type document struct {
	Templates    map[string]Template `yaml:"templates"`
	Repositories yaml.Node           `yaml:"repositories"`
	Settings     Settings            `yaml:"settings"`
}

// Load reads and parses the registry document at path.
//
// A missing file yields ErrConfiguration; malformed content, or a repository
// referencing an unknown template, yields ErrParse. Load has no side effects
// beyond reading the file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	reg := &Registry{
		Templates: doc.Templates,
		Settings:  doc.Settings,
	}
	if reg.Templates == nil {
		reg.Templates = map[string]Template{}
	}
	if reg.Settings.BranchPrefix == "" {
		reg.Settings.BranchPrefix = DefaultBranchPrefix
	}
	if reg.Settings.PRTitleTemplate == "" {
		reg.Settings.PRTitleTemplate = DefaultPRTitleTemplate
	}
	if reg.Settings.PRBodyTemplate == "" {
		reg.Settings.PRBodyTemplate = DefaultPRBodyTemplate
	}

	repos, err := parseRepositories(&doc.Repositories, reg)
	if err != nil {
		return nil, err
	}
	reg.Repositories = repos

	return reg, nil
}

// parseRepositories walks the repositories mapping node directly so the
// document order of entries survives into Registry.Repositories.
func parseRepositories(node *yaml.Node, reg *Registry) ([]Repository, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: repositories must be a mapping", ErrParse)
	}

	repos := make([]Repository, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var spec repositorySpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: repository %q: %v", ErrParse, name, err)
		}

		if _, ok := reg.Templates[spec.Template]; !ok {
			return nil, fmt.Errorf("%w: repository %q references unknown template %q", ErrParse, name, spec.Template)
		}

		autoUpdate := true
		if spec.AutoUpdate != nil {
			autoUpdate = *spec.AutoUpdate
		}

		branchPrefix := spec.BranchPrefix
		if branchPrefix == "" {
			branchPrefix = reg.Settings.BranchPrefix
		}

		repos = append(repos, Repository{
			Name:         name,
			Template:     spec.Template,
			GitHub:       spec.GitHub,
			LocalPath:    spec.LocalPath,
			AutoUpdate:   autoUpdate,
			BranchPrefix: branchPrefix,
		})
	}

	return repos, nil
}
