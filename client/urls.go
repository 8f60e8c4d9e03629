package client

import (
	"fmt"
	"strings"
)

// ChannelURLs constructs the URLs of a conda channel's on-server layout:
// one repodata.json per subdir, one channeldata.json at the root, and the
// package archives underneath each subdir.
type ChannelURLs struct {
	base string
}

// NewChannelURLs builds the URL layout for a channel base URL, such as
// "https://conda.anaconda.org/conda-forge".
func NewChannelURLs(base string) ChannelURLs {
	return ChannelURLs{base: strings.TrimRight(base, "/")}
}

// Base returns the channel base URL without a trailing slash.
func (u ChannelURLs) Base() string {
	return u.base
}

// Repodata returns the URL of a subdir's repository index.
func (u ChannelURLs) Repodata(subdir string) string {
	return JoinURL(u.base, subdir, "repodata.json")
}

// Channeldata returns the URL of the channel's aggregated metadata.
func (u ChannelURLs) Channeldata() string {
	return JoinURL(u.base, "channeldata.json")
}

// Package returns the download URL of a package archive.
func (u ChannelURLs) Package(subdir, filename string) string {
	return JoinURL(u.base, subdir, filename)
}

// PURL returns the package URL identifier of a package in this channel.
func (u ChannelURLs) PURL(name, version string) string {
	purl := fmt.Sprintf("pkg:conda/%s/%s", u.Channel(), name)
	if version != "" {
		purl += "@" + version
	}
	return purl
}

// Channel returns the channel name, the last path segment of the base URL.
func (u ChannelURLs) Channel() string {
	if i := strings.LastIndexByte(u.base, '/'); i >= 0 {
		return u.base[i+1:]
	}
	return u.base
}

// JoinURL concatenates URL parts with single slashes.
func JoinURL(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			trimmed = append(trimmed, part)
		}
	}
	return strings.Join(trimmed, "/")
}
