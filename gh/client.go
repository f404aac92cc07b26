/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package gh talks to the GitHub hosting service: opening update pull
// requests and searching for repositories generated from a template.
package gh

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint. Used by tests
// and GitHub Enterprise installs. The URL must end with a slash.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		u, err := url.Parse(base)
		if err != nil {
			return
		}
		c.gh.BaseURL = u
	}
}

// Client wraps the GitHub API for the two hosting operations driftmgr needs.
type Client struct {
	gh *github.Client
}

// New constructs a Client authenticated with token. An empty token yields an
// unauthenticated client, which is enough for dry runs but not for opening
// pull requests.
func New(ctx context.Context, token string, opts ...Option) *Client {
	var c *Client
	if token == "" {
		c = &Client{gh: github.NewClient(nil)}
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c = &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePullRequest opens a PR on ownerRepo ("owner/name") from head into
// base and returns its HTML URL.
func (c *Client) CreatePullRequest(ctx context.Context, ownerRepo, head, base, title, body string) (string, error) {
	owner, repo, err := splitOwnerRepo(ownerRepo)
	if err != nil {
		return "", err
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}

	return pr.GetHTMLURL(), nil
}

// SearchTemplateRepos finds repositories whose binding state file references
// templateName anywhere on GitHub and returns their distinct owner/name
// identifiers, sorted. Search failures degrade to an empty result with a
// logged warning rather than aborting the run.
func (c *Client) SearchTemplateRepos(ctx context.Context, templateName string) []string {
	query := fmt.Sprintf("%s in:file filename:.cruft.json", templateName)

	seen := map[string]bool{}
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		res, resp, err := c.gh.Search.Code(ctx, query, opts)
		if err != nil {
			clog.WarnContextf(ctx, "GitHub search failed: %v", err)
			return nil
		}
		for _, hit := range res.CodeResults {
			if name := hit.GetRepository().GetFullName(); name != "" {
				seen[name] = true
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitOwnerRepo(ownerRepo string) (string, string, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", ownerRepo)
	}
	return owner, repo, nil
}
