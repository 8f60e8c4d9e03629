package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/condamirror/client"
	"github.com/git-pkgs/condamirror/fetch"
	"github.com/git-pkgs/condamirror/internal/channeldata"
	"github.com/git-pkgs/condamirror/internal/mirror"
	"github.com/git-pkgs/condamirror/internal/progress"
	"github.com/git-pkgs/condamirror/internal/repodata"
)

var (
	dryRun bool

	updateCmd = &cobra.Command{
		Use:   "update <config>",
		Short: "Download a patch of everything the local mirror is missing",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpdate,
	}
)

func init() {
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without downloading anything")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	logger.Info("updating mirror",
		"subdirs", cfg.Subdirs,
		"python_versions", cfg.PythonVersions,
		"local", cfg.Local)

	var localRepos []*repodata.RepoData
	if cfg.Local != "" {
		if localRepos, err = mirror.ReadRepos(cfg.Local, cfg.Subdirs); err != nil {
			return fmt.Errorf("reading local mirror: %w", err)
		}
	}

	patch := mirror.PatchDir(cfg.Patches, time.Now())
	if !dryRun {
		if err := os.MkdirAll(patch, 0o755); err != nil {
			return err
		}
		logger.Info("writing patch", "dir", patch)
	}

	c := client.NewClient(client.WithTimeout(cfg.Timeout))
	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher())

	var mirrored []*repodata.RepoData
	var upstreamMeta *channeldata.ChannelData
	for _, channelCfg := range cfg.Channels {
		urls := client.NewChannelURLs(channelCfg.URL)
		logger.Info("reading channel", "url", urls.Base(),
			"include", len(channelCfg.Include) > 0, "exclude", len(channelCfg.Exclude) > 0)

		upstream, err := mirror.FetchRepos(ctx, c, urls, cfg.Subdirs)
		if err != nil {
			return err
		}
		planned, err := mirror.Plan(upstream, localRepos, mirror.Filter{
			Include:        channelCfg.Include,
			Exclude:        channelCfg.Exclude,
			PythonVersions: cfg.PythonVersions,
		})
		if err != nil {
			return err
		}

		for _, repo := range planned {
			jobs := mirror.Downloads(urls, repo, patch)
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d packages\n", urls.Base(), repo.Subdir(), len(jobs))
				continue
			}
			if err := download(ctx, fetcher, repo.Subdir(), jobs, cfg.Concurrency); err != nil {
				return err
			}
		}
		mirrored = append(mirrored, planned...)

		meta, err := mirror.FetchChannelData(ctx, c, urls)
		switch {
		case errors.Is(err, client.ErrNotFound):
			logger.Warn("channel has no channeldata.json", "url", urls.Base())
		case err != nil:
			return err
		case upstreamMeta == nil:
			upstreamMeta = meta
		default:
			// Earlier channels win for groups both describe.
			upstreamMeta = upstreamMeta.Merge(meta)
		}
	}

	if dryRun {
		return nil
	}

	if upstreamMeta == nil {
		upstreamMeta = mirror.SeedChannelData(mirrored)
	}
	var previous *channeldata.ChannelData
	if cfg.Local != "" {
		previous, err = mirror.ReadChannelData(filepath.Join(cfg.Local, "channeldata.json"))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reading local channeldata: %w", err)
		}
	}

	rebuilt, err := mirror.BuildChannelData(previous, upstreamMeta, mirrored)
	if err != nil {
		return err
	}
	if err := mirror.WriteChannelData(filepath.Join(patch, "channeldata.json"), rebuilt); err != nil {
		return err
	}
	logger.Info("patch complete", "dir", patch, "groups", rebuilt.Len())
	return nil
}

func download(ctx context.Context, fetcher fetch.FetcherInterface, subdir string, jobs []mirror.Download, concurrency int) error {
	if len(jobs) == 0 {
		return nil
	}
	tracker := progress.New(os.Stdout, subdir+":", len(jobs))
	err := mirror.Run(ctx, fetcher, jobs, concurrency, func(mirror.Download) {
		tracker.Add(1)
	})
	tracker.Done()
	return err
}
