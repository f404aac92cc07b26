/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders the outcome of a drift run as Markdown. Rendering
// is a pure function of the outcome list; writing the result anywhere is the
// caller's concern.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/templatetools/driftmgr/updater"
)

// Summary holds the aggregate counts over one run.
type Summary struct {
	Total      int
	NeedUpdate int
	Updated    int
	Errors     int
}

// Summarize computes the aggregate counts. An outcome counts as updated only
// when it succeeded and a PR was opened.
func Summarize(outcomes []updater.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.NeedsUpdate {
			s.NeedUpdate++
		}
		if o.Success && o.PRURL != "" {
			s.Updated++
		}
		if !o.Success {
			s.Errors++
		}
	}
	return s
}

// Render produces the Markdown report: a summary block, a repository
// overview table, then one detail block per outcome in input order.
func Render(outcomes []updater.Outcome, generatedAt time.Time) string {
	s := Summarize(outcomes)

	var b strings.Builder
	b.WriteString("# Template Drift Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total repositories: %d\n", s.Total)
	fmt.Fprintf(&b, "- Updates available: %d\n", s.NeedUpdate)
	fmt.Fprintf(&b, "- Successful updates: %d\n", s.Updated)
	fmt.Fprintf(&b, "- Errors: %d\n\n", s.Errors)

	writeOverviewTable(&b, outcomes)

	b.WriteString("\n## Details\n")
	for _, o := range outcomes {
		writeDetail(&b, o)
	}

	return b.String()
}

func writeOverviewTable(b *strings.Builder, outcomes []updater.Outcome) {
	table := tablewriter.NewTable(b,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Behavior: tw.Behavior{TrimSpace: tw.Off},
		}),
		tablewriter.WithHeader([]string{"Repository", "Result", "Drift", "PR"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	for _, o := range outcomes {
		pr := "-"
		if o.PRURL != "" {
			pr = o.PRURL
		}
		_ = table.Append([]string{o.Repo.Name, statusGlyph(o), driftStatus(o), pr})
	}
	_ = table.Render()
}

func writeDetail(b *strings.Builder, o updater.Outcome) {
	fmt.Fprintf(b, "\n### %s %s\n", o.Repo.Name, statusGlyph(o))
	fmt.Fprintf(b, "- Status: %s\n", driftStatus(o))

	if o.PRURL != "" {
		fmt.Fprintf(b, "- PR: %s\n", o.PRURL)
	}
	if o.Error != "" {
		fmt.Fprintf(b, "- Error: %s (stage: %s)\n", o.Error, o.Stage)
	}
	if o.OldCommit != "" && o.NewCommit != "" {
		fmt.Fprintf(b, "- Commits: `%.8s` → `%.8s`\n", o.OldCommit, o.NewCommit)
	}
}

func statusGlyph(o updater.Outcome) string {
	if o.Success {
		return "✅"
	}
	return "❌"
}

func driftStatus(o updater.Outcome) string {
	if o.NeedsUpdate {
		return "📦 needs update"
	}
	return "✓ up to date"
}
