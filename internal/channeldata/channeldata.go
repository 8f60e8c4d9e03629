// Package channeldata models the aggregated metadata of a conda channel,
// the channeldata.json document describing every package group across the
// channel's platform subdirs. A ChannelData value is an immutable snapshot;
// Merge combines two snapshots and Rescale recomputes every group's latest
// version, timestamp and subdir presence from raw repository indexes.
package channeldata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/git-pkgs/condamirror/internal/fields"
	"github.com/git-pkgs/condamirror/internal/version"
)

// Version is the channeldata.json schema version this package understands.
const Version = 1

// ErrInvalidChannel is returned when channel data does not match the
// supported schema.
var ErrInvalidChannel = errors.New("invalid channeldata")

// InvalidChannelError wraps ErrInvalidChannel with the reason the data was
// rejected.
type InvalidChannelError struct {
	Reason string
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("invalid channeldata: %s", e.Reason)
}

func (e *InvalidChannelError) Unwrap() error {
	return ErrInvalidChannel
}

// Record is the view of a package record that rescaling needs: which subdir
// it lives in and the version and timestamp competing for "latest".
type Record interface {
	Version() string
	Timestamp() int64
	Subdir() string
}

// Repo is the view of one subdir's repository index that rescaling needs.
type Repo interface {
	Subdir() string
	Contains(name string) bool
	Records(name string) []Record
}

// GroupInfo is the metadata of one package group, an entry of the "packages"
// section of channeldata.json. The schema of these entries is owned by the
// Anaconda organization and changes over time, so only the handful of fields
// this module interprets are exposed as accessors; all other fields ride
// along untouched and reappear in Dump.
//
// Groups are immutable: the field bag is deep-copied in and deep-copied back
// out, and the With methods return new values.
type GroupInfo struct {
	name string
	data map[string]any
}

// NewGroup builds a group from its name and decoded fields. The version
// field is not required to be present; Version just returns "" until one is
// established.
func NewGroup(name string, data map[string]any) *GroupInfo {
	copied := fields.Clone(data)
	if copied == nil {
		copied = make(map[string]any)
	}
	return &GroupInfo{name: name, data: copied}
}

// Name returns the name of the package group.
func (g *GroupInfo) Name() string { return g.name }

// Version returns the version of the latest package in the group, or ""
// when none has been recorded yet.
func (g *GroupInfo) Version() string { return fields.String(g.data, "version") }

// Timestamp returns the timestamp of the latest package in the group, or
// zero when the group has none.
func (g *GroupInfo) Timestamp() int64 { return fields.Int64(g.data, "timestamp") }

// Subdirs returns the subdirs the group has packages in.
func (g *GroupInfo) Subdirs() []string { return fields.Strings(g.data, "subdirs") }

// Dump returns a deep copy of the group's fields.
func (g *GroupInfo) Dump() map[string]any { return fields.Clone(g.data) }

// WithLatest returns a group with updated version and timestamp. A zero
// timestamp removes any prior timestamp field rather than recording zero.
func (g *GroupInfo) WithLatest(version string, timestamp int64) *GroupInfo {
	data := fields.Clone(g.data)
	if timestamp == 0 {
		delete(data, "timestamp")
	} else {
		data["timestamp"] = timestamp
	}
	data["version"] = version
	return &GroupInfo{name: g.name, data: data}
}

// WithSubdirs returns a group with the subdirs field replaced, in the order
// given.
func (g *GroupInfo) WithSubdirs(subdirs []string) *GroupInfo {
	data := fields.Clone(g.data)
	list := make([]any, len(subdirs))
	for i, s := range subdirs {
		list[i] = s
	}
	data["subdirs"] = list
	return &GroupInfo{name: g.name, data: data}
}

// Equal reports whether both groups describe the same package name. The
// field bags are deliberately not compared: the name is the group's whole
// identity, which is what lets Merge deduplicate by key.
func (g *GroupInfo) Equal(other *GroupInfo) bool {
	return other != nil && g.name == other.name
}

func (g *GroupInfo) String() string {
	return fmt.Sprintf("GroupInfo(%s)", g.name)
}

// ChannelData is an immutable channel metadata snapshot: package groups
// keyed by name, plus the subdirs the channel covers. Deriving methods
// return new values and never modify the receiver, so snapshots may be
// shared freely between goroutines.
type ChannelData struct {
	subdirs []string
	groups  map[string]*GroupInfo
	names   []string
}

// New builds a snapshot from subdirs and groups keyed by package name. Both
// are copied; the groups themselves are shared, which is safe because they
// are immutable.
func New(subdirs []string, groups map[string]*GroupInfo) *ChannelData {
	copied := make(map[string]*GroupInfo, len(groups))
	names := make([]string, 0, len(groups))
	for name, group := range groups {
		copied[name] = group
		names = append(names, name)
	}
	sort.Strings(names)
	return &ChannelData{
		subdirs: append([]string(nil), subdirs...),
		groups:  copied,
		names:   names,
	}
}

// Parse builds a snapshot from decoded channeldata.json contents. The
// schema version is checked before anything else; the subdir list is read
// verbatim. Each group is stored under the name it reports, which for a
// well-formed document equals its key in the packages section.
func Parse(data map[string]any) (*ChannelData, error) {
	if v := fields.Int64(data, "channeldata_version"); v != Version {
		return nil, &InvalidChannelError{Reason: fmt.Sprintf("unknown channeldata version: %v", data["channeldata_version"])}
	}

	subdirs := fields.Strings(data, "subdirs")
	groups := make(map[string]*GroupInfo)
	for name, entry := range fields.Object(data, "packages") {
		bag, _ := entry.(map[string]any)
		group := NewGroup(name, bag)
		groups[group.Name()] = group
	}
	return New(subdirs, groups), nil
}

// Decode reads and parses channeldata.json contents. Numbers are decoded as
// json.Number so group fields survive re-serialization unchanged.
func Decode(r io.Reader) (*ChannelData, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &InvalidChannelError{Reason: err.Error()}
	}
	return Parse(data)
}

// Subdirs returns the channel's subdirs in their internal order.
func (c *ChannelData) Subdirs() []string {
	return append([]string(nil), c.subdirs...)
}

// Names returns the group names present in the snapshot, sorted.
func (c *ChannelData) Names() []string {
	return append([]string(nil), c.names...)
}

// Contains reports whether the snapshot has a group of the given name.
func (c *ChannelData) Contains(name string) bool {
	_, ok := c.groups[name]
	return ok
}

// Group returns the group of the given name.
func (c *ChannelData) Group(name string) (*GroupInfo, bool) {
	group, ok := c.groups[name]
	return group, ok
}

// Len returns the number of groups.
func (c *ChannelData) Len() int { return len(c.groups) }

// Dump converts the snapshot back into its channeldata.json representation.
// Subdirs are always written sorted, whatever order the snapshot holds them
// in.
func (c *ChannelData) Dump() map[string]any {
	packages := make(map[string]any, len(c.groups))
	for name, group := range c.groups {
		packages[name] = group.Dump()
	}
	subdirs := append([]string(nil), c.subdirs...)
	sort.Strings(subdirs)
	return map[string]any{
		"channeldata_version": Version,
		"packages":            packages,
		"subdirs":             subdirs,
	}
}

// Encode writes the snapshot as channeldata.json contents.
func (c *ChannelData) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(c.Dump())
}

// Merge combines two snapshots. Subdirs become the sorted union. Groups
// become the union of both group sets; for a name present in both, the
// receiver's group wins whole, field bags are never merged.
func (c *ChannelData) Merge(other *ChannelData) *ChannelData {
	subdirSet := make(map[string]struct{}, len(c.subdirs)+len(other.subdirs))
	for _, s := range c.subdirs {
		subdirSet[s] = struct{}{}
	}
	for _, s := range other.subdirs {
		subdirSet[s] = struct{}{}
	}

	groups := make(map[string]*GroupInfo, len(c.groups)+len(other.groups))
	for _, name := range unionNames(c.names, other.names) {
		if group, ok := c.groups[name]; ok {
			groups[name] = group
		} else {
			groups[name] = other.groups[name]
		}
	}
	return New(sortedSet(subdirSet), groups)
}

// Rescale recomputes every group of the snapshot from raw repository
// indexes. A group keeps only what the repos can corroborate: its records
// are gathered across all given repos, the latest by (version order,
// timestamp) becomes the group's version and timestamp, and its subdirs
// field becomes the sorted set of subdirs that contributed records. Groups
// with no records anywhere are dropped. The result's subdir list is the
// union of subdirs observed while scanning, not the receiver's original
// list.
//
// The new version field is the winning record's version normalized through
// its ordering key, so "1.0-alpha" comes back as "1.0_alpha".
func (c *ChannelData) Rescale(repos []Repo) (*ChannelData, error) {
	channelSubdirs := make(map[string]struct{})
	groups := make(map[string]*GroupInfo)

	for _, name := range c.names {
		var records []Record
		for _, repo := range repos {
			if !repo.Contains(name) {
				continue
			}
			records = append(records, repo.Records(name)...)
			channelSubdirs[repo.Subdir()] = struct{}{}
		}
		if len(records) == 0 {
			continue
		}

		subdirs := make(map[string]struct{}, len(records))
		var latest Record
		var latestKey version.OrderKey
		for _, record := range records {
			subdirs[record.Subdir()] = struct{}{}
			key, err := version.Order(record.Version())
			if err != nil {
				return nil, fmt.Errorf("rescale %s: %w", name, err)
			}
			if latest == nil {
				latest, latestKey = record, key
				continue
			}
			switch cmp := key.Compare(latestKey); {
			case cmp > 0:
				latest, latestKey = record, key
			case cmp == 0 && record.Timestamp() > latest.Timestamp():
				latest, latestKey = record, key
			}
		}

		group := c.groups[name].
			WithSubdirs(sortedSet(subdirs)).
			WithLatest(latestKey.String(), latest.Timestamp())
		groups[name] = group
	}
	return New(sortedSet(channelSubdirs), groups), nil
}

func unionNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, names := range [][]string{a, b} {
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			union = append(union, name)
		}
	}
	sort.Strings(union)
	return union
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
