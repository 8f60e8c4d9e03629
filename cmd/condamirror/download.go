package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/purl"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/condamirror/client"
	"github.com/git-pkgs/condamirror/fetch"
	"github.com/git-pkgs/condamirror/internal/mirror"
	"github.com/git-pkgs/condamirror/internal/version"
)

var (
	downloadSubdirs []string
	downloadDest    string

	downloadCmd = &cobra.Command{
		Use:   "download <purl>...",
		Short: "Download individual packages by package URL",
		Long: `Download individual packages identified by conda package URLs, such as
pkg:conda/conda-forge/numpy@1.26.0. The namespace names the channel, either
as an anaconda.org channel name or a full channel URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDownload,
	}
)

func init() {
	downloadCmd.Flags().StringSliceVar(&downloadSubdirs, "subdir", []string{"linux-64", "noarch"}, "subdirs to search for the package")
	downloadCmd.Flags().StringVar(&downloadDest, "dest", ".", "directory to download into")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := client.DefaultClient()
	fetcher := fetch.NewFetcher()

	for _, raw := range args {
		if err := downloadPURL(ctx, c, fetcher, raw); err != nil {
			return err
		}
	}
	return nil
}

func downloadPURL(ctx context.Context, c *client.Client, fetcher *fetch.Fetcher, raw string) error {
	p, err := purl.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", raw, err)
	}
	if p.Type != "conda" {
		return fmt.Errorf("%s: not a conda package URL", raw)
	}
	if p.Namespace == "" {
		return fmt.Errorf("%s: missing channel namespace", raw)
	}

	urls := client.NewChannelURLs(channelURL(p.Namespace))
	spec, err := packageSpec(p.Name, p.Version)
	if err != nil {
		return err
	}

	var found int
	for _, subdir := range downloadSubdirs {
		repo, err := mirror.FetchRepo(ctx, c, urls, subdir)
		if errors.Is(err, client.ErrNotFound) {
			logger.Debug("subdir not present", "channel", urls.Base(), "subdir", subdir)
			continue
		}
		if err != nil {
			return err
		}
		for _, record := range repo.Records(spec.Name()) {
			if !spec.Match(record.Name(), record.Version()) {
				continue
			}
			dest := filepath.Join(downloadDest, record.Filename())
			if err := fetch.DownloadFile(ctx, fetcher, urls.Package(subdir, record.Filename()), dest, record.SHA256()); err != nil {
				return err
			}
			logger.Info("downloaded", "file", dest)
			found++
		}
	}
	if found == 0 {
		return fmt.Errorf("%s: no matching packages in %v", raw, downloadSubdirs)
	}
	return nil
}

// channelURL expands a bare channel name into its anaconda.org URL; full
// URLs pass through.
func channelURL(namespace string) string {
	if strings.HasPrefix(namespace, "http://") || strings.HasPrefix(namespace, "https://") {
		return namespace
	}
	return "https://conda.anaconda.org/" + namespace
}

func packageSpec(name, ver string) (version.Spec, error) {
	if ver == "" {
		return version.ParseSpec(name)
	}
	return version.ParseSpec(fmt.Sprintf("%s ==%s", name, ver))
}
