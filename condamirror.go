// Package condamirror maintains conda channel metadata for mirrored
// channels.
//
// A channel's channeldata.json aggregates package groups across the
// channel's platform subdirs; each subdir's repodata.json lists the raw
// package records. This package models both documents as immutable values
// and provides the transformations mirroring needs: merging channel
// metadata, and rescaling it against repository indexes so it describes
// exactly the packages a mirror holds.
//
// Basic usage:
//
//	channel, err := condamirror.DecodeChannelData(file)
//	if err != nil {
//		log.Fatal(err)
//	}
//	repo, err := condamirror.DecodeRepoData(repoFile)
//	if err != nil {
//		log.Fatal(err)
//	}
//	rescaled, err := condamirror.Rescale(channel, repo)
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = rescaled.Encode(out)
//
// Remote channels are reached through the client package; the fetch package
// downloads package archives with retries, circuit breaking and checksum
// verification.
package condamirror

import (
	"github.com/git-pkgs/condamirror/client"
	"github.com/git-pkgs/condamirror/internal/channeldata"
	"github.com/git-pkgs/condamirror/internal/mirror"
	"github.com/git-pkgs/condamirror/internal/repodata"
	"github.com/git-pkgs/condamirror/internal/version"
)

// Re-export types from internal/channeldata
type (
	// ChannelData is an immutable channel metadata snapshot.
	ChannelData = channeldata.ChannelData

	// GroupInfo is the metadata of one package group.
	GroupInfo = channeldata.GroupInfo
)

// Re-export types from internal/repodata
type (
	// RepoData is one subdir's immutable repository index.
	RepoData = repodata.RepoData

	// PackageRecord is one entry of a repository index.
	PackageRecord = repodata.PackageRecord

	// ParseOption adjusts how repository data is parsed.
	ParseOption = repodata.ParseOption
)

// Re-export types from internal/version
type (
	// OrderKey is a version string converted into conda's total ordering.
	OrderKey = version.OrderKey

	// Spec is a parsed package match specification.
	Spec = version.Spec
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for channel servers.
	Client = client.Client

	// ChannelURLs constructs the URLs of a channel's on-server layout.
	ChannelURLs = client.ChannelURLs
)

// Schema versions of the two channel documents.
const (
	ChanneldataVersion = channeldata.Version
	RepodataVersion    = repodata.Version
)

// Re-export errors
var (
	ErrInvalidChannel = channeldata.ErrInvalidChannel
	ErrInvalidRepo    = repodata.ErrInvalidRepo
	ErrNotFound       = client.ErrNotFound
)

// Error types
type (
	InvalidChannelError = channeldata.InvalidChannelError
	InvalidRepoError    = repodata.InvalidRepoError
	InvalidVersionError = version.InvalidVersionError
	InvalidSpecError    = version.InvalidSpecError
	HTTPError           = client.HTTPError
	RateLimitError      = client.RateLimitError
)

// Parsing entry points.
var (
	// ParseChannelData builds a snapshot from decoded channeldata.json
	// contents.
	ParseChannelData = channeldata.Parse

	// DecodeChannelData reads and parses channeldata.json contents.
	DecodeChannelData = channeldata.Decode

	// NewChannelData builds a snapshot from subdirs and groups.
	NewChannelData = channeldata.New

	// NewGroup builds a group from its name and decoded fields.
	NewGroup = channeldata.NewGroup

	// ParseRepoData builds an index from decoded repodata.json contents.
	ParseRepoData = repodata.Parse

	// DecodeRepoData reads and parses repodata.json contents.
	DecodeRepoData = repodata.Decode

	// WithPreferConda makes .conda records win over .tar.bz2 records.
	WithPreferConda = repodata.WithPreferConda

	// Order parses a version string into its ordering key.
	Order = version.Order

	// ParseSpec parses a match specification such as "numpy >=1.19".
	ParseSpec = version.ParseSpec
)

// Client constructors.
var (
	// DefaultClient returns a client with sensible defaults:
	// - 30s timeout
	// - 5 retries with exponential backoff
	// - Retry on 429 and 5xx responses
	DefaultClient = client.DefaultClient

	// NewClient creates a new client with the given options.
	NewClient = client.NewClient

	// WithTimeout sets the HTTP client timeout.
	WithTimeout = client.WithTimeout

	// WithMaxRetries sets the maximum number of retries.
	WithMaxRetries = client.WithMaxRetries

	// NewChannelURLs builds the URL layout for a channel base URL.
	NewChannelURLs = client.NewChannelURLs
)

// Option configures a Client.
type Option = client.Option

// Rescale recomputes the channel's groups from repository indexes: each
// group keeps the latest version and timestamp found across the given
// repos, groups with no records anywhere are dropped, and the subdirs
// reflect what was actually observed.
func Rescale(channel *ChannelData, repos ...*RepoData) (*ChannelData, error) {
	return channel.Rescale(mirror.Repos(repos))
}
