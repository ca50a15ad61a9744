package repofetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContents serves an in-memory repository tree. Keys are paths; a file
// maps to its content, a directory maps to its child entries.
type fakeContents struct {
	files map[string]string
	dirs  map[string][]Entry
}

func (f *fakeContents) GetContents(_ context.Context, path string) (*FileData, []Entry, error) {
	if content, ok := f.files[path]; ok {
		return &FileData{
			Path:    path,
			Size:    len(content),
			HTMLURL: "https://github.com/acme/widget/blob/main/" + path,
			Content: content,
		}, nil, nil
	}
	if entries, ok := f.dirs[path]; ok {
		return nil, entries, nil
	}
	return nil, nil, errors.New("404 not found")
}

func fileEntry(path string, size int) Entry {
	return Entry{Path: path, Type: "file", Size: size}
}

func dirEntry(path string) Entry {
	return Entry{Path: path, Type: "dir"}
}

func collectFiles(t *testing.T, f *Fetcher) []File {
	t.Helper()
	var files []File
	for file := range f.Fetch(context.Background()) {
		files = append(files, file)
	}
	return files
}

func TestFetchPriorityFilesFirst(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"README.md":       "# Widget\n\nA widget service.",
			"CONTRIBUTING.md": "How to contribute.",
			"docs/guide.md":   "The guide.",
		},
		dirs: map[string][]Entry{
			"docs": {fileEntry("docs/guide.md", 10)},
		},
	}

	files := collectFiles(t, NewFetcher(api, 100, nil))
	require.Len(t, files, 3)

	assert.Equal(t, "README.md", files[0].Path)
	assert.Equal(t, "readme", files[0].FileType)
	assert.Equal(t, "CONTRIBUTING.md", files[1].Path)
	assert.Equal(t, "readme", files[1].FileType)
	assert.Equal(t, "docs/guide.md", files[2].Path)
	assert.Equal(t, "docs", files[2].FileType)
}

func TestFetchClassifiesRoleDirectories(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"api/v1/types.go":                        "package v1",
			"config/crd/bases/widgets.yaml":          "kind: CustomResourceDefinition",
			"config/rbac/role.yaml":                  "kind: Role",
			"config/samples/widget_v1.yaml":          "kind: Widget",
			"config/samples/widget-crd-example.yaml": "kind: Widget",
			"charts/widget/values.yaml":              "replicas: 1",
			"bundle/manifests/widget.csv.yaml":       "kind: ClusterServiceVersion",
			"deploy/operator.yaml":                   "kind: Deployment",
		},
		dirs: map[string][]Entry{
			"api":              {dirEntry("api/v1")},
			"api/v1":           {fileEntry("api/v1/types.go", 10)},
			"config/crd":       {dirEntry("config/crd/bases")},
			"config/crd/bases": {fileEntry("config/crd/bases/widgets.yaml", 30)},
			"config/rbac":      {fileEntry("config/rbac/role.yaml", 10)},
			"config/samples": {
				fileEntry("config/samples/widget_v1.yaml", 12),
				fileEntry("config/samples/widget-crd-example.yaml", 12),
			},
			"charts":           {dirEntry("charts/widget")},
			"charts/widget":    {fileEntry("charts/widget/values.yaml", 11)},
			"bundle/manifests": {fileEntry("bundle/manifests/widget.csv.yaml", 26)},
			"deploy":           {fileEntry("deploy/operator.yaml", 16)},
		},
	}

	files := collectFiles(t, NewFetcher(api, 100, nil))

	types := make(map[string]string, len(files))
	for _, f := range files {
		types[f.Path] = f.FileType
	}
	assert.Equal(t, "api_types", types["api/v1/types.go"])
	assert.Equal(t, "crd", types["config/crd/bases/widgets.yaml"])
	assert.Equal(t, "rbac", types["config/rbac/role.yaml"])
	assert.Equal(t, "sample", types["config/samples/widget_v1.yaml"])
	assert.Equal(t, "helm_chart", types["charts/widget/values.yaml"])
	assert.Equal(t, "olm_bundle", types["bundle/manifests/widget.csv.yaml"])
	assert.Equal(t, "code", types["deploy/operator.yaml"])

	// The walk root decides the type; a "crd" in the file name does not
	// reclassify a file under config/samples.
	assert.Equal(t, "sample", types["config/samples/widget-crd-example.yaml"])
}

func TestFetchSkipsDisallowedAndOversized(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"docs/guide.md": "The guide.",
		},
		dirs: map[string][]Entry{
			"docs": {
				fileEntry("docs/guide.md", 10),
				fileEntry("docs/diagram.png", 10),
				fileEntry("docs/huge.md", maxFileSize+1),
			},
		},
	}

	files := collectFiles(t, NewFetcher(api, 100, nil))
	require.Len(t, files, 1)
	assert.Equal(t, "docs/guide.md", files[0].Path)
}

func TestFetchRespectsFileBudget(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"README.md":       "readme",
			"CONTRIBUTING.md": "contributing",
			"CHANGELOG.md":    "changelog",
			"ARCHITECTURE.md": "architecture",
		},
	}

	files := collectFiles(t, NewFetcher(api, 2, nil))
	assert.Len(t, files, 2)
}

func TestFetchBoundsWalkDepth(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"docs/a/b/c/d/deep.md":   "within bounds",
			"docs/a/b/c/d/e/deep.md": "too deep",
		},
		dirs: map[string][]Entry{
			"docs":           {dirEntry("docs/a")},
			"docs/a":         {dirEntry("docs/a/b")},
			"docs/a/b":       {dirEntry("docs/a/b/c")},
			"docs/a/b/c":     {dirEntry("docs/a/b/c/d")},
			"docs/a/b/c/d":   {fileEntry("docs/a/b/c/d/deep.md", 13), dirEntry("docs/a/b/c/d/e")},
			"docs/a/b/c/d/e": {fileEntry("docs/a/b/c/d/e/deep.md", 8)},
		},
	}

	files := collectFiles(t, NewFetcher(api, 100, nil))
	require.Len(t, files, 1)
	assert.Equal(t, "docs/a/b/c/d/deep.md", files[0].Path)
}

func TestFetchDoesNotEmitDuplicates(t *testing.T) {
	api := &fakeContents{
		files: map[string]string{
			"docs/README.md": "# Docs index",
		},
		dirs: map[string][]Entry{
			"docs": {fileEntry("docs/README.md", 12)},
		},
	}

	files := collectFiles(t, NewFetcher(api, 100, nil))
	assert.Len(t, files, 1)
}

// fakeIssues returns canned issues per state.
type fakeIssues struct {
	open   []Issue
	closed []Issue
	err    error
}

func (f *fakeIssues) ListIssues(_ context.Context, state string, limit int) ([]Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	issues := f.open
	if state == "closed" {
		issues = f.closed
	}
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return issues, nil
}

func TestFetchIssuesOpenBeforeClosed(t *testing.T) {
	api := &fakeIssues{
		open:   []Issue{{Number: 12, State: "open"}, {Number: 7, State: "open"}},
		closed: []Issue{{Number: 3, State: "closed"}},
	}

	issues, err := FetchIssues(context.Background(), api, 100)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, []int{12, 7, 3}, []int{issues[0].Number, issues[1].Number, issues[2].Number})
}

func TestFetchIssuesBudgetStopsAtOpen(t *testing.T) {
	api := &fakeIssues{
		open:   []Issue{{Number: 1}, {Number: 2}, {Number: 3}},
		closed: []Issue{{Number: 4}},
	}

	issues, err := FetchIssues(context.Background(), api, 2)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	for _, it := range issues {
		assert.Equal(t, "", it.State) // all from the open list
	}
}

func TestFetchIssuesPropagatesErrors(t *testing.T) {
	api := &fakeIssues{err: errors.New("rate limited")}

	_, err := FetchIssues(context.Background(), api, 10)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limited"))
}

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		raw         string
		owner, repo string
		wantErr     bool
	}{
		{"https://github.com/acme/widget", "acme", "widget", false},
		{"https://github.com/acme/widget.git", "acme", "widget", false},
		{"https://github.com/acme/widget/tree/main/docs", "acme", "widget", false},
		{"https://gitlab.com/acme/widget", "", "", true},
		{"https://github.com/acme", "", "", true},
		{"://bad", "", "", true},
	}
	for _, tc := range cases {
		owner, repo, err := ParseRepoURL(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.owner, owner)
		assert.Equal(t, tc.repo, repo)
	}
}
