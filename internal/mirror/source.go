// Package mirror implements the channel mirroring workflow: fetch repository
// indexes from upstream channels, filter them down to the packages of
// interest, subtract what a local mirror already holds, download the
// remainder into a dated patch directory, and rebuild channel metadata
// describing exactly what was mirrored.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/git-pkgs/condamirror/client"
	"github.com/git-pkgs/condamirror/internal/channeldata"
	"github.com/git-pkgs/condamirror/internal/repodata"
)

// NotFoundError reports a channel listing the upstream server does not have.
type NotFoundError struct {
	Channel string
	Subdir  string
}

func (e *NotFoundError) Error() string {
	if e.Subdir != "" {
		return fmt.Sprintf("%s: subdir %s not found", e.Channel, e.Subdir)
	}
	return fmt.Sprintf("%s: channeldata not found", e.Channel)
}

func (e *NotFoundError) Unwrap() error {
	return client.ErrNotFound
}

// FetchRepo downloads and parses one subdir's repository index from an
// upstream channel.
func FetchRepo(ctx context.Context, c *client.Client, urls client.ChannelURLs, subdir string, opts ...repodata.ParseOption) (*repodata.RepoData, error) {
	var doc map[string]any
	if err := c.GetJSON(ctx, urls.Repodata(subdir), &doc); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &NotFoundError{Channel: urls.Base(), Subdir: subdir}
		}
		return nil, err
	}
	return repodata.Parse(doc, opts...)
}

// FetchRepos downloads the repository indexes of the given subdirs, in the
// order given.
func FetchRepos(ctx context.Context, c *client.Client, urls client.ChannelURLs, subdirs []string, opts ...repodata.ParseOption) ([]*repodata.RepoData, error) {
	repos := make([]*repodata.RepoData, 0, len(subdirs))
	for _, subdir := range subdirs {
		repo, err := FetchRepo(ctx, c, urls, subdir, opts...)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// FetchChannelData downloads and parses a channel's aggregated metadata.
func FetchChannelData(ctx context.Context, c *client.Client, urls client.ChannelURLs) (*channeldata.ChannelData, error) {
	var doc map[string]any
	if err := c.GetJSON(ctx, urls.Channeldata(), &doc); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &NotFoundError{Channel: urls.Base()}
		}
		return nil, err
	}
	return channeldata.Parse(doc)
}

// ReadRepo parses <dir>/<subdir>/repodata.json from a local channel.
func ReadRepo(dir, subdir string, opts ...repodata.ParseOption) (*repodata.RepoData, error) {
	path := filepath.Join(dir, subdir, "repodata.json")
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return repodata.Decode(file, opts...)
}

// ReadRepos parses the repository indexes of the given subdirs from a local
// channel directory.
func ReadRepos(dir string, subdirs []string, opts ...repodata.ParseOption) ([]*repodata.RepoData, error) {
	repos := make([]*repodata.RepoData, 0, len(subdirs))
	for _, subdir := range subdirs {
		repo, err := ReadRepo(dir, subdir, opts...)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// ReadChannelData parses a channeldata.json file.
func ReadChannelData(path string) (*channeldata.ChannelData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return channeldata.Decode(file)
}

// WriteChannelData writes a channeldata.json file atomically.
func WriteChannelData(path string, channel *channeldata.ChannelData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := channel.Encode(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
