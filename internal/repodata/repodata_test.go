package repodata

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func entry(name, version, build string, buildNumber int64, depends ...string) map[string]any {
	deps := make([]any, len(depends))
	for i, d := range depends {
		deps[i] = d
	}
	return map[string]any{
		"name":         name,
		"version":      version,
		"build":        build,
		"build_number": buildNumber,
		"subdir":       "linux-64",
		"depends":      deps,
	}
}

func repoDoc() map[string]any {
	return map[string]any{
		"repodata_version": int64(1),
		"info":             map[string]any{"subdir": "linux-64"},
		"packages": map[string]any{
			"numpy-1.18.5-py38_0.tar.bz2": entry("numpy", "1.18.5", "py38_0", 0, "python >=3.8,<3.9.0a0"),
			"numpy-1.19.0-py38_0.tar.bz2": entry("numpy", "1.19.0", "py38_0", 0, "python >=3.8,<3.9.0a0"),
			"python-3.8.3-hcff3b4d_2.tar.bz2": entry("python", "3.8.3", "hcff3b4d_2", 2),
		},
		"packages.conda": map[string]any{
			"numpy-1.19.0-py38_0.conda": entry("numpy", "1.19.0", "py38_0", 0, "python >=3.8,<3.9.0a0"),
		},
		"removed": []any{},
	}
}

func mustParse(t *testing.T, doc map[string]any, opts ...ParseOption) *RepoData {
	t.Helper()
	repo, err := Parse(doc, opts...)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return repo
}

func filenames(repo *RepoData, name string) []string {
	var out []string
	for _, record := range repo.Records(name) {
		out = append(out, record.Filename())
	}
	return out
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	doc := repoDoc()
	doc["repodata_version"] = int64(2)
	_, err := Parse(doc)
	if !errors.Is(err, ErrInvalidRepo) {
		t.Errorf("Parse error = %v, want ErrInvalidRepo", err)
	}
}

func TestParseRequiresSubdir(t *testing.T) {
	doc := repoDoc()
	doc["info"] = map[string]any{}
	_, err := Parse(doc)
	if !errors.Is(err, ErrInvalidRepo) {
		t.Errorf("Parse error = %v, want ErrInvalidRepo", err)
	}
}

func TestParseDeduplicatesAcrossSections(t *testing.T) {
	repo := mustParse(t, repoDoc())
	if repo.Subdir() != "linux-64" {
		t.Errorf("Subdir = %q, want %q", repo.Subdir(), "linux-64")
	}
	if want := []string{"numpy", "python"}; !reflect.DeepEqual(repo.Names(), want) {
		t.Errorf("Names = %v, want %v", repo.Names(), want)
	}
	// numpy 1.19.0 exists in both sections; the tarball section wins by
	// default.
	records := repo.Records("numpy")
	if len(records) != 2 {
		t.Fatalf("numpy records = %d, want 2", len(records))
	}
	for _, record := range records {
		if record.IsConda() {
			t.Errorf("unexpected .conda record %s without WithPreferConda", record.Filename())
		}
	}
}

func TestParsePreferConda(t *testing.T) {
	repo := mustParse(t, repoDoc(), WithPreferConda())
	var conda int
	for _, record := range repo.Records("numpy") {
		if record.IsConda() {
			conda++
		}
	}
	if conda != 1 {
		t.Errorf("conda records = %d, want 1", conda)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	repo := mustParse(t, repoDoc(), WithPreferConda())
	dump := repo.Dump()

	if dump["repodata_version"] != Version {
		t.Errorf("repodata_version = %v, want %d", dump["repodata_version"], Version)
	}
	packages := dump["packages"].(map[string]any)
	condaPackages := dump["packages.conda"].(map[string]any)
	if len(packages) != 2 || len(condaPackages) != 1 {
		t.Errorf("sections = (%d, %d), want (2, 1)", len(packages), len(condaPackages))
	}

	reparsed, err := Parse(dump, WithPreferConda())
	if err != nil {
		t.Fatalf("Parse of dump failed: %v", err)
	}
	if !repo.Equal(reparsed) {
		t.Error("round trip changed the index")
	}
}

func TestDecodeEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(repoDoc()); err != nil {
		t.Fatal(err)
	}
	repo, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var out bytes.Buffer
	if err := repo.Encode(&out); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	reparsed, err := Decode(&out)
	if err != nil {
		t.Fatalf("Decode of encoded output failed: %v", err)
	}
	if !repo.Equal(reparsed) {
		t.Error("round trip changed the index")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{"))
	if !errors.Is(err, ErrInvalidRepo) {
		t.Errorf("Decode error = %v, want ErrInvalidRepo", err)
	}
}

func TestDifference(t *testing.T) {
	repo := mustParse(t, repoDoc())

	partial := New("linux-64", map[string][]*PackageRecord{
		"numpy": {NewRecord("numpy-1.18.5-py38_0.tar.bz2", entry("numpy", "1.18.5", "py38_0", 0))},
	})

	diff := repo.Difference(partial)
	if want := []string{"numpy-1.19.0-py38_0.tar.bz2"}; !reflect.DeepEqual(filenames(diff, "numpy"), want) {
		t.Errorf("numpy difference = %v, want %v", filenames(diff, "numpy"), want)
	}
	// Groups the other index lacks are untouched.
	if len(diff.Records("python")) != 1 {
		t.Errorf("python records = %d, want 1", len(diff.Records("python")))
	}
}

func TestDifferenceNil(t *testing.T) {
	repo := mustParse(t, repoDoc())
	if repo.Difference(nil) != repo {
		t.Error("difference against nil should be the index itself")
	}
}

func TestMerge(t *testing.T) {
	a := New("linux-64", map[string][]*PackageRecord{
		"numpy": {NewRecord("numpy-1.18.5-py38_0.tar.bz2", entry("numpy", "1.18.5", "py38_0", 0))},
	})
	b := New("linux-64", map[string][]*PackageRecord{
		"numpy": {
			NewRecord("numpy-1.18.5-py38_0.tar.bz2", entry("numpy", "1.18.5", "py38_0", 0)),
			NewRecord("numpy-1.19.0-py38_0.tar.bz2", entry("numpy", "1.19.0", "py38_0", 0)),
		},
		"scipy": {NewRecord("scipy-1.5.0-py38_0.tar.bz2", entry("scipy", "1.5.0", "py38_0", 0))},
	})

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if want := []string{"numpy", "scipy"}; !reflect.DeepEqual(merged.Names(), want) {
		t.Errorf("Names = %v, want %v", merged.Names(), want)
	}
	want := []string{"numpy-1.18.5-py38_0.tar.bz2", "numpy-1.19.0-py38_0.tar.bz2"}
	if !reflect.DeepEqual(filenames(merged, "numpy"), want) {
		t.Errorf("numpy records = %v, want deduplicated %v", filenames(merged, "numpy"), want)
	}
}

func TestMergeRejectsMismatchedSubdirs(t *testing.T) {
	a := New("linux-64", nil)
	b := New("osx-64", nil)
	if _, err := a.Merge(b); err == nil {
		t.Error("Merge accepted indexes of different subdirs")
	}
}

func TestSelect(t *testing.T) {
	repo := mustParse(t, repoDoc())

	selected, err := repo.Select([]string{"numpy >=1.19"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if want := []string{"numpy-1.19.0-py38_0.tar.bz2"}; !reflect.DeepEqual(filenames(selected, "numpy"), want) {
		t.Errorf("numpy records = %v, want %v", filenames(selected, "numpy"), want)
	}
	if selected.Contains("python") {
		t.Error("Select kept a group no spec names")
	}

	// No specs means no filtering.
	same, err := repo.Select(nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if same != repo {
		t.Error("Select with no specs should be the index itself")
	}
}

func TestSelectRejectsMalformedSpec(t *testing.T) {
	repo := mustParse(t, repoDoc())
	if _, err := repo.Select([]string{"numpy >="}); err == nil {
		t.Error("Select accepted a malformed spec")
	}
}

func TestReject(t *testing.T) {
	repo := mustParse(t, repoDoc())

	rejected, err := repo.Reject([]string{"numpy <1.19", "python"})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if want := []string{"numpy-1.19.0-py38_0.tar.bz2"}; !reflect.DeepEqual(filenames(rejected, "numpy"), want) {
		t.Errorf("numpy records = %v, want %v", filenames(rejected, "numpy"), want)
	}
	if rejected.Contains("python") {
		t.Error("a fully rejected group should vanish from the index")
	}
}

func TestRestrictPython(t *testing.T) {
	doc := map[string]any{
		"repodata_version": int64(1),
		"info":             map[string]any{"subdir": "linux-64"},
		"packages": map[string]any{
			"python-3.7.9-h7579374_0.tar.bz2": entry("python", "3.7.9", "h7579374_0", 0),
			"python-3.8.3-hcff3b4d_2.tar.bz2": entry("python", "3.8.3", "hcff3b4d_2", 2),
			"numpy-1.19.0-py37_0.tar.bz2":     entry("numpy", "1.19.0", "py37_0", 0, "python >=3.7,<3.8.0a0"),
			"numpy-1.19.0-py38_0.tar.bz2":     entry("numpy", "1.19.0", "py38_0", 0, "python >=3.8,<3.9.0a0"),
			"zlib-1.2.11-h7b6447c_3.tar.bz2":  entry("zlib", "1.2.11", "h7b6447c_3", 3),
		},
		"removed": []any{},
	}
	repo := mustParse(t, doc)

	restricted, err := repo.RestrictPython([]string{"3.8"})
	if err != nil {
		t.Fatalf("RestrictPython failed: %v", err)
	}
	if want := []string{"python-3.8.3-hcff3b4d_2.tar.bz2"}; !reflect.DeepEqual(filenames(restricted, "python"), want) {
		t.Errorf("python records = %v, want %v", filenames(restricted, "python"), want)
	}
	if want := []string{"numpy-1.19.0-py38_0.tar.bz2"}; !reflect.DeepEqual(filenames(restricted, "numpy"), want) {
		t.Errorf("numpy records = %v, want %v", filenames(restricted, "numpy"), want)
	}
	// Packages without a python dependency always stay.
	if !restricted.Contains("zlib") {
		t.Error("python-independent package dropped by RestrictPython")
	}

	// No versions means no filtering.
	same, err := repo.RestrictPython(nil)
	if err != nil {
		t.Fatalf("RestrictPython failed: %v", err)
	}
	if same != repo {
		t.Error("RestrictPython with no versions should be the index itself")
	}
}
