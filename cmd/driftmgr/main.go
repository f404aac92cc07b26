/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the driftmgr CLI: it walks a registry of
// template-generated repositories, detects template drift, and opens update
// pull requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"github.com/templatetools/driftmgr/cmdrunner"
	"github.com/templatetools/driftmgr/driftcheck"
	"github.com/templatetools/driftmgr/driftmanager"
	"github.com/templatetools/driftmgr/gh"
	"github.com/templatetools/driftmgr/registry"
	"github.com/templatetools/driftmgr/report"
	"github.com/templatetools/driftmgr/updater"
	"github.com/templatetools/driftmgr/workspace"
)

type config struct {
	GitHubToken    string        `env:"GITHUB_TOKEN"`
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT,default=10m"`
	Concurrency    int           `env:"DRIFTMGR_CONCURRENCY,default=1"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		registryPath string
		dryRun       bool
		scan         bool
		reportPath   string
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:          "driftmgr",
		Short:        "Manage template updates across repositories",
		Long:         "driftmgr detects template drift across a registry of generated repositories and opens one update pull request per repository that has fallen behind.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := setupLogging(cmd.Context(), verbose)

			var cfg config
			if err := envconfig.Process(ctx, &cfg); err != nil {
				return fmt.Errorf("processing environment: %w", err)
			}

			reg, err := registry.Load(resolveRegistryPath(registryPath))
			if err != nil {
				return err
			}

			runner := cmdrunner.New(cmdrunner.WithTimeout(cfg.CommandTimeout))

			var (
				pr       updater.PullRequester
				mgrOpts  = []driftmanager.Option{driftmanager.WithConcurrency(cfg.Concurrency)}
				hostless = cfg.GitHubToken == ""
			)
			if !hostless {
				client := gh.New(ctx, cfg.GitHubToken)
				pr = client
				mgrOpts = append(mgrOpts, driftmanager.WithSearcher(client))
			} else {
				clog.WarnContextf(ctx, "GITHUB_TOKEN not set, hosting operations are unavailable")
			}

			applier, err := updater.NewApplier(runner, pr, reg.Settings)
			if err != nil {
				return err
			}

			m := driftmanager.New(reg, workspace.NewManager(runner), driftcheck.NewDetector(runner), applier, mgrOpts...)

			if scan {
				m.Scan(ctx)
				return nil
			}

			outcomes := m.Run(ctx, dryRun)
			rendered := report.Render(outcomes, time.Now())

			if reportPath != "" {
				if err := os.WriteFile(reportPath, []byte(rendered), 0o644); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				clog.InfoContextf(ctx, "Report written to %s", reportPath)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}

	cmd.Flags().StringVarP(&registryPath, "registry", "r", "cruft_registry.yaml", "Path to the registry file")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Check for updates without applying them")
	cmd.Flags().BoolVar(&scan, "scan", false, "Scan GitHub for repositories using the registered templates")
	cmd.Flags().StringVarP(&reportPath, "report", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

func setupLogging(ctx context.Context, verbose bool) context.Context {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return clog.WithLogger(ctx, log)
}

// resolveRegistryPath falls back to a registry living next to the binary
// when the given path does not exist, so driftmgr can run from anywhere in a
// checkout that vendors its registry.
func resolveRegistryPath(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	fallback := filepath.Join(filepath.Dir(exe), path)
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}
	return path
}
