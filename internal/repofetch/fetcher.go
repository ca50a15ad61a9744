package repofetch

import (
	"context"
	"log/slog"
	"path"
	"strings"
)

// File is one fetched repository file, classified for retrieval metadata.
type File struct {
	Path     string
	HTMLURL  string
	Content  string
	FileType string
}

const (
	// maxFileSize is the per-file ceiling; larger files are skipped.
	maxFileSize = 500 * 1024
	// maxWalkDepth bounds directory recursion below each walk root.
	maxWalkDepth = 4
)

// priorityFiles are fetched first regardless of the directory walk.
var priorityFiles = []string{
	"README.md",
	"readme.md",
	"README.rst",
	"CONTRIBUTING.md",
	"CHANGELOG.md",
	"ARCHITECTURE.md",
	"docs/README.md",
	"doc/README.md",
}

// roleDirs hold files whose location signals their role; each root's
// classification applies to its whole subtree.
var roleDirs = []string{
	"api",
	"apis",
	"config/crd",
	"config/rbac",
	"config/samples",
	"bundle/manifests",
	"charts",
	"deploy",
	"hack",
}

// docDirs hold prose documentation trees.
var docDirs = []string{
	"docs",
	"doc",
	"documentation",
	"examples",
	"samples",
}

var allowedExtensions = map[string]bool{
	".md":   true,
	".rst":  true,
	".txt":  true,
	".adoc": true,
	".go":   true,
	".py":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".sh":   true,
	".bash": true,
}

// dirClassifications maps role-directory names to file types. Order matters:
// the first matching pattern wins. Classification looks only at the walk
// root; every file in the subtree inherits the root's type.
var dirClassifications = []struct {
	pattern  string
	fileType string
}{
	{"api", "api_types"},
	{"crd", "crd"},
	{"rbac", "rbac"},
	{"sample", "sample"},
	{"chart", "helm_chart"},
	{"helm", "helm_chart"},
	{"bundle", "olm_bundle"},
}

func classifyDir(dir string) string {
	lower := strings.ToLower(dir)
	for _, c := range dirClassifications {
		if strings.Contains(lower, c.pattern) {
			return c.fileType
		}
	}
	return "code"
}

// Fetcher pulls a bounded, priority-ordered set of files out of a repository.
type Fetcher struct {
	api      ContentsAPI
	maxFiles int
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher. maxFiles bounds the total number of files
// emitted; non-positive values default to 100.
func NewFetcher(api ContentsAPI, maxFiles int, logger *slog.Logger) *Fetcher {
	if maxFiles <= 0 {
		maxFiles = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{api: api, maxFiles: maxFiles, logger: logger}
}

// Fetch walks the repository and sends files on the returned channel, which
// is closed when the walk finishes or the file budget is exhausted. Missing
// priority files and absent directories are skipped silently; only the walk
// order and budgets decide what is emitted.
func (f *Fetcher) Fetch(ctx context.Context) <-chan File {
	out := make(chan File)
	go func() {
		defer close(out)
		f.run(ctx, out)
	}()
	return out
}

type walkState struct {
	out     chan<- File
	emitted int
	seen    map[string]bool
}

func (f *Fetcher) run(ctx context.Context, out chan<- File) {
	st := &walkState{out: out, seen: make(map[string]bool)}

	for _, p := range priorityFiles {
		if st.emitted >= f.maxFiles || ctx.Err() != nil {
			return
		}
		f.fetchFile(ctx, st, p, "readme")
	}

	for _, dir := range roleDirs {
		if st.emitted >= f.maxFiles || ctx.Err() != nil {
			return
		}
		f.walkDir(ctx, st, dir, 0, classifyDir(dir))
	}

	for _, dir := range docDirs {
		if st.emitted >= f.maxFiles || ctx.Err() != nil {
			return
		}
		f.walkDir(ctx, st, dir, 0, "docs")
	}

	f.logger.Info("repository walk complete", "files", st.emitted)
}

// walkDir lists dir and descends into subdirectories up to maxWalkDepth,
// tagging every emitted file with fileType. A listing error means the
// directory does not exist in this repository.
func (f *Fetcher) walkDir(ctx context.Context, st *walkState, dir string, depth int, fileType string) {
	if depth > maxWalkDepth {
		return
	}

	_, entries, err := f.api.GetContents(ctx, dir)
	if err != nil {
		f.logger.Debug("directory not listed", "path", dir, "error", err)
		return
	}

	for _, e := range entries {
		if st.emitted >= f.maxFiles || ctx.Err() != nil {
			return
		}
		switch e.Type {
		case "file":
			if e.Size > maxFileSize || !allowedExtensions[strings.ToLower(path.Ext(e.Path))] {
				continue
			}
			f.fetchFile(ctx, st, e.Path, fileType)
		case "dir":
			f.walkDir(ctx, st, e.Path, depth+1, fileType)
		}
	}
}

// fetchFile retrieves one file and emits it. Fetch or decode failures skip
// the file; they never abort the walk.
func (f *Fetcher) fetchFile(ctx context.Context, st *walkState, filePath, fileType string) {
	if st.seen[filePath] {
		return
	}
	st.seen[filePath] = true

	file, _, err := f.api.GetContents(ctx, filePath)
	if err != nil || file == nil {
		f.logger.Debug("file skipped", "path", filePath, "error", err)
		return
	}
	if file.Size > maxFileSize || strings.TrimSpace(file.Content) == "" {
		return
	}

	select {
	case st.out <- File{
		Path:     file.Path,
		HTMLURL:  file.HTMLURL,
		Content:  file.Content,
		FileType: fileType,
	}:
		st.emitted++
	case <-ctx.Done():
	}
}
