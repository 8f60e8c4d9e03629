package mirror

import (
	"path/filepath"
	"time"

	"github.com/git-pkgs/condamirror/client"
	"github.com/git-pkgs/condamirror/internal/repodata"
)

// Filter narrows a repository index to the packages worth mirroring.
// Include keeps only records matching its match specs, Exclude then drops
// matching records, and PythonVersions restricts the result to the given
// interpreter series. Empty fields are skipped.
type Filter struct {
	Include        []string
	Exclude        []string
	PythonVersions []string
}

// Apply runs the filter over one repository index.
func (f Filter) Apply(repo *repodata.RepoData) (*repodata.RepoData, error) {
	var err error
	if len(f.Include) > 0 {
		if repo, err = repo.Select(f.Include); err != nil {
			return nil, err
		}
	}
	if len(f.Exclude) > 0 {
		if repo, err = repo.Reject(f.Exclude); err != nil {
			return nil, err
		}
	}
	if len(f.PythonVersions) > 0 {
		if repo, err = repo.RestrictPython(f.PythonVersions); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// ApplyAll runs the filter over every index.
func (f Filter) ApplyAll(repos []*repodata.RepoData) ([]*repodata.RepoData, error) {
	filtered := make([]*repodata.RepoData, 0, len(repos))
	for _, repo := range repos {
		out, err := f.Apply(repo)
		if err != nil {
			return nil, err
		}
		filtered = append(filtered, out)
	}
	return filtered, nil
}

// Plan computes what a patch must contain: the upstream indexes filtered
// down to the packages of interest, minus everything the local mirror
// already has in the matching subdir.
func Plan(upstream, local []*repodata.RepoData, filter Filter) ([]*repodata.RepoData, error) {
	filtered, err := filter.ApplyAll(upstream)
	if err != nil {
		return nil, err
	}
	for i, repo := range filtered {
		for _, localRepo := range local {
			if localRepo.Subdir() == repo.Subdir() {
				filtered[i] = repo.Difference(localRepo)
			}
		}
	}
	return filtered, nil
}

// Download is one package archive to mirror.
type Download struct {
	URL      string
	Dest     string
	SHA256   string
	Subdir   string
	Filename string
}

// Downloads expands a repository index into download jobs rooted at dir,
// one per record, laid out as <dir>/<subdir>/<filename>.
func Downloads(urls client.ChannelURLs, repo *repodata.RepoData, dir string) []Download {
	var jobs []Download
	for _, name := range repo.Names() {
		for _, record := range repo.Records(name) {
			jobs = append(jobs, Download{
				URL:      urls.Package(repo.Subdir(), record.Filename()),
				Dest:     filepath.Join(dir, repo.Subdir(), record.Filename()),
				SHA256:   record.SHA256(),
				Subdir:   repo.Subdir(),
				Filename: record.Filename(),
			})
		}
	}
	return jobs
}

// PatchDir returns the dated patch directory for a run started at now,
// "patch_YYYYMMDD_HHMMSS" under root.
func PatchDir(root string, now time.Time) string {
	return filepath.Join(root, "patch_"+now.Format("20060102_150405"))
}
