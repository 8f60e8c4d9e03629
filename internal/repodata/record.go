package repodata

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/condamirror/internal/fields"
)

// Key identifies a package record within a channel. Two records with equal
// keys describe the same build, whatever their other fields say.
type Key struct {
	Subdir      string
	Name        string
	Version     string
	BuildNumber int64
	Build       string
}

// PackageRecord is one entry of a repository index, from the "packages" or
// "packages.conda" section of repodata.json. The schema of these entries is
// owned by the Anaconda organization and changes over time, so only the
// handful of fields this module interprets are exposed as accessors; all
// other fields ride along untouched and reappear in Dump.
//
// Records are immutable: the field bag is deep-copied in and deep-copied
// back out.
type PackageRecord struct {
	filename string
	data     map[string]any
	key      Key
	conda    bool
}

// NewRecord builds a record from its package filename and decoded fields.
func NewRecord(filename string, data map[string]any) *PackageRecord {
	data = fields.Clone(data)
	return &PackageRecord{
		filename: filename,
		data:     data,
		key: Key{
			Subdir:      fields.String(data, "subdir"),
			Name:        fields.String(data, "name"),
			Version:     fields.String(data, "version"),
			BuildNumber: fields.Int64(data, "build_number"),
			Build:       fields.String(data, "build"),
		},
		conda: strings.HasSuffix(filename, "conda"),
	}
}

// Filename returns the package filename, which carries the name, version and
// build of the package.
func (r *PackageRecord) Filename() string { return r.filename }

// Name returns the generic package name.
func (r *PackageRecord) Name() string { return r.key.Name }

// Version returns the package version string.
func (r *PackageRecord) Version() string { return r.key.Version }

// Build returns the package build identifier.
func (r *PackageRecord) Build() string { return r.key.Build }

// BuildNumber returns the incremental number of builds sharing an identifier.
func (r *PackageRecord) BuildNumber() int64 { return r.key.BuildNumber }

// Subdir returns the platform sub-directory the record belongs to.
func (r *PackageRecord) Subdir() string { return r.key.Subdir }

// Timestamp returns the package timestamp, or zero when the record has none.
func (r *PackageRecord) Timestamp() int64 { return fields.Int64(r.data, "timestamp") }

// SHA256 returns the hex digest of the package archive.
func (r *PackageRecord) SHA256() string { return fields.String(r.data, "sha256") }

// Depends returns the package dependencies as match specification strings.
func (r *PackageRecord) Depends() []string { return fields.Strings(r.data, "depends") }

// IsConda reports whether the record describes a .conda archive rather than
// a .tar.bz2 one.
func (r *PackageRecord) IsConda() bool { return r.conda }

// Key returns the record's identity.
func (r *PackageRecord) Key() Key { return r.key }

// Dump returns a deep copy of the record's fields.
func (r *PackageRecord) Dump() map[string]any { return fields.Clone(r.data) }

// Equal reports whether both records have the same key.
func (r *PackageRecord) Equal(other *PackageRecord) bool {
	return other != nil && r.key == other.key
}

func (r *PackageRecord) String() string {
	return fmt.Sprintf("%s/%s", r.key.Subdir, r.filename)
}
