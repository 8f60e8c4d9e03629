package mirror

import (
	"github.com/git-pkgs/condamirror/internal/channeldata"
	"github.com/git-pkgs/condamirror/internal/repodata"
)

// repoView adapts a repository index to the narrow view channel metadata
// rescaling consumes.
type repoView struct {
	repo *repodata.RepoData
}

func (v repoView) Subdir() string { return v.repo.Subdir() }

func (v repoView) Contains(name string) bool { return v.repo.Contains(name) }

func (v repoView) Records(name string) []channeldata.Record {
	records := v.repo.Records(name)
	out := make([]channeldata.Record, len(records))
	for i, record := range records {
		out[i] = record
	}
	return out
}

// Repos adapts repository indexes for channeldata.Rescale.
func Repos(repos []*repodata.RepoData) []channeldata.Repo {
	out := make([]channeldata.Repo, len(repos))
	for i, repo := range repos {
		out[i] = repoView{repo: repo}
	}
	return out
}

// SeedChannelData builds minimal channel metadata from the package names of
// the given indexes, for mirroring channels that publish no channeldata.json
// of their own. Rescaling the result fills in versions, timestamps and
// subdirs.
func SeedChannelData(repos []*repodata.RepoData) *channeldata.ChannelData {
	subdirs := make([]string, 0, len(repos))
	groups := make(map[string]*channeldata.GroupInfo)
	for _, repo := range repos {
		subdirs = append(subdirs, repo.Subdir())
		for _, name := range repo.Names() {
			if _, ok := groups[name]; !ok {
				groups[name] = channeldata.NewGroup(name, nil)
			}
		}
	}
	return channeldata.New(subdirs, groups)
}

// BuildChannelData rebuilds channel metadata for a mirrored subset. Group
// descriptions known to the previous local metadata win over the upstream
// ones, then everything is rescaled against the mirrored indexes so the
// result describes exactly the packages that were actually mirrored.
// previous may be nil for a first run.
func BuildChannelData(previous, upstream *channeldata.ChannelData, repos []*repodata.RepoData) (*channeldata.ChannelData, error) {
	merged := upstream
	if previous != nil {
		merged = previous.Merge(upstream)
	}
	return merged.Rescale(Repos(repos))
}
