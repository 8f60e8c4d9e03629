// Package repodata models the platform repository index of a conda channel,
// the repodata.json file each subdir serves. It parses and serializes the
// index, and derives filtered views of it: differences against another index,
// merges, match-spec selection and python version restriction.
package repodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/git-pkgs/condamirror/internal/fields"
	"github.com/git-pkgs/condamirror/internal/version"
)

// Version is the repodata.json schema version this package understands.
const Version = 1

const pythonName = "python"

// ErrInvalidRepo is returned when repository data does not match the
// supported schema.
var ErrInvalidRepo = errors.New("invalid repodata")

// InvalidRepoError wraps ErrInvalidRepo with the reason the data was
// rejected.
type InvalidRepoError struct {
	Reason string
}

func (e *InvalidRepoError) Error() string {
	return fmt.Sprintf("invalid repodata: %s", e.Reason)
}

func (e *InvalidRepoError) Unwrap() error {
	return ErrInvalidRepo
}

// RepoData is an immutable repository index: package records grouped by
// generic package name within one platform subdir. Deriving methods return
// new values and never modify the receiver.
type RepoData struct {
	subdir string
	groups map[string][]*PackageRecord
	names  []string
}

// New builds an index from records grouped by package name. The groups map
// is copied; the records themselves are shared, which is safe because they
// are immutable.
func New(subdir string, groups map[string][]*PackageRecord) *RepoData {
	copied := make(map[string][]*PackageRecord, len(groups))
	names := make([]string, 0, len(groups))
	for name, records := range groups {
		copied[name] = append([]*PackageRecord(nil), records...)
		names = append(names, name)
	}
	sort.Strings(names)
	return &RepoData{subdir: subdir, groups: copied, names: names}
}

// ParseOption adjusts how repository data is parsed.
type ParseOption func(*parseConfig)

type parseConfig struct {
	preferConda bool
}

// WithPreferConda makes .conda records win over .tar.bz2 records that
// describe the same build. By default the .tar.bz2 section wins.
func WithPreferConda() ParseOption {
	return func(c *parseConfig) { c.preferConda = true }
}

// Parse builds an index from decoded repodata.json contents. Records that
// appear in both the "packages" and "packages.conda" sections are kept once,
// from whichever section wins under the options.
func Parse(data map[string]any, opts ...ParseOption) (*RepoData, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if v := fields.Int64(data, "repodata_version"); v != Version {
		return nil, &InvalidRepoError{Reason: fmt.Sprintf("unknown repodata version: %v", data["repodata_version"])}
	}
	info := fields.Object(data, "info")
	subdir := fields.String(info, "subdir")
	if subdir == "" {
		return nil, &InvalidRepoError{Reason: "missing info.subdir"}
	}

	sections := []string{"packages", "packages.conda"}
	if cfg.preferConda {
		sections[0], sections[1] = sections[1], sections[0]
	}

	groups := make(map[string][]*PackageRecord)
	seen := make(map[Key]struct{})
	for _, section := range sections {
		entries := fields.Object(data, section)
		for _, filename := range sortedKeys(entries) {
			entry, ok := entries[filename].(map[string]any)
			if !ok {
				continue
			}
			record := NewRecord(filename, entry)
			if _, dup := seen[record.Key()]; dup {
				continue
			}
			seen[record.Key()] = struct{}{}
			groups[record.Name()] = append(groups[record.Name()], record)
		}
	}

	return New(subdir, groups), nil
}

// Decode reads and parses repodata.json contents. Numbers are decoded as
// json.Number so record fields survive re-serialization unchanged.
func Decode(r io.Reader, opts ...ParseOption) (*RepoData, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &InvalidRepoError{Reason: err.Error()}
	}
	return Parse(data, opts...)
}

// Subdir returns the platform sub-directory the index describes.
func (d *RepoData) Subdir() string { return d.subdir }

// Names returns the package names present in the index, sorted.
func (d *RepoData) Names() []string {
	return append([]string(nil), d.names...)
}

// Contains reports whether the index has a group for the package name.
func (d *RepoData) Contains(name string) bool {
	_, ok := d.groups[name]
	return ok
}

// Records returns the records of one package group, in index order.
func (d *RepoData) Records(name string) []*PackageRecord {
	return append([]*PackageRecord(nil), d.groups[name]...)
}

// Len returns the number of package groups.
func (d *RepoData) Len() int { return len(d.groups) }

// Dump converts the index back into its repodata.json representation.
func (d *RepoData) Dump() map[string]any {
	packages := make(map[string]any)
	condaPackages := make(map[string]any)
	for _, records := range d.groups {
		for _, record := range records {
			if record.IsConda() {
				condaPackages[record.Filename()] = record.Dump()
			} else {
				packages[record.Filename()] = record.Dump()
			}
		}
	}
	return map[string]any{
		"info":             map[string]any{"subdir": d.subdir},
		"packages":         packages,
		"packages.conda":   condaPackages,
		"removed":          []any{},
		"repodata_version": Version,
	}
}

// Encode writes the index as repodata.json contents.
func (d *RepoData) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(d.Dump())
}

// Difference returns the records of this index that the other index does not
// have. Groups the other index lacks are carried over whole.
func (d *RepoData) Difference(other *RepoData) *RepoData {
	if other == nil {
		return d
	}
	groups := make(map[string][]*PackageRecord, len(d.groups))
	for name, records := range d.groups {
		if !other.Contains(name) {
			groups[name] = records
			continue
		}
		drop := make(map[Key]struct{})
		for _, record := range other.groups[name] {
			drop[record.Key()] = struct{}{}
		}
		kept := make([]*PackageRecord, 0, len(records))
		for _, record := range records {
			if _, ok := drop[record.Key()]; !ok {
				kept = append(kept, record)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Filename() < kept[j].Filename() })
		groups[name] = kept
	}
	return New(d.subdir, groups)
}

// Merge combines two indexes of the same subdir. When both have a record
// with the same key, the receiver's wins. Group record lists come back
// sorted by filename.
func (d *RepoData) Merge(other *RepoData) (*RepoData, error) {
	if d.subdir != other.subdir {
		return nil, fmt.Errorf("merged subdirs must match: %s, %s", d.subdir, other.subdir)
	}

	groups := make(map[string][]*PackageRecord)
	for _, name := range unionNames(d.names, other.names) {
		seen := make(map[Key]struct{})
		var merged []*PackageRecord
		for _, record := range d.groups[name] {
			if _, dup := seen[record.Key()]; dup {
				continue
			}
			seen[record.Key()] = struct{}{}
			merged = append(merged, record)
		}
		for _, record := range other.groups[name] {
			if _, dup := seen[record.Key()]; dup {
				continue
			}
			seen[record.Key()] = struct{}{}
			merged = append(merged, record)
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Filename() < merged[j].Filename() })
		groups[name] = merged
	}
	return New(d.subdir, groups), nil
}

// Select keeps only the records matching at least one of the given match
// specifications. With no specs the index is returned unchanged.
func (d *RepoData) Select(specs []string) (*RepoData, error) {
	if len(specs) == 0 {
		return d, nil
	}
	parsed, err := parseSpecs(specs)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]*PackageRecord)
	for _, spec := range parsed {
		for _, record := range d.groups[spec.Name()] {
			if spec.Match(record.Name(), record.Version()) {
				groups[spec.Name()] = append(groups[spec.Name()], record)
			}
		}
	}
	return New(d.subdir, groups), nil
}

// Reject removes the records matching any of the given match specifications.
// A group whose records are all rejected disappears from the index.
func (d *RepoData) Reject(specs []string) (*RepoData, error) {
	parsed, err := parseSpecs(specs)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]*PackageRecord, len(d.groups))
	for name, records := range d.groups {
		groups[name] = records
	}
	for _, spec := range parsed {
		kept := make([]*PackageRecord, 0, len(groups[spec.Name()]))
		for _, record := range groups[spec.Name()] {
			if !spec.Match(record.Name(), record.Version()) {
				kept = append(kept, record)
			}
		}
		if len(kept) > 0 {
			groups[spec.Name()] = kept
		} else {
			delete(groups, spec.Name())
		}
	}
	return New(d.subdir, groups), nil
}

// RestrictPython keeps the python interpreters of the given version series
// and the packages that can run on at least one of them. Packages without a
// python dependency always stay. With no versions the index is returned
// unchanged.
func (d *RepoData) RestrictPython(versions []string) (*RepoData, error) {
	if len(versions) == 0 {
		return d, nil
	}
	interpreters := make([]version.Spec, 0, len(versions))
	for _, v := range versions {
		spec, err := version.ParseSpec(fmt.Sprintf("%s %s*", pythonName, v))
		if err != nil {
			return nil, err
		}
		interpreters = append(interpreters, spec)
	}

	groups := make(map[string][]*PackageRecord)
	for _, name := range d.names {
		for _, record := range d.groups[name] {
			include := true
			if record.Name() == pythonName {
				include = false
				for _, spec := range interpreters {
					if spec.Match(record.Name(), record.Version()) {
						include = true
						break
					}
				}
			} else {
				for _, depend := range record.Depends() {
					if depFields := strings.Fields(depend); len(depFields) == 0 || depFields[0] != pythonName {
						continue
					}
					spec, err := version.ParseSpec(depend)
					if err != nil {
						return nil, err
					}
					include = spec.MatchAnyVersion(versions)
					break
				}
			}
			if include {
				groups[name] = append(groups[name], record)
			}
		}
	}
	return New(d.subdir, groups), nil
}

// Equal reports whether both indexes hold the same groups with the same
// record keys in the same order.
func (d *RepoData) Equal(other *RepoData) bool {
	if other == nil || d.subdir != other.subdir || len(d.groups) != len(other.groups) {
		return false
	}
	for name, records := range d.groups {
		otherRecords, ok := other.groups[name]
		if !ok || len(records) != len(otherRecords) {
			return false
		}
		for i, record := range records {
			if !record.Equal(otherRecords[i]) {
				return false
			}
		}
	}
	return true
}

func parseSpecs(specs []string) ([]version.Spec, error) {
	parsed := make([]version.Spec, 0, len(specs))
	for _, s := range specs {
		spec, err := version.ParseSpec(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, spec)
	}
	return parsed, nil
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

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
