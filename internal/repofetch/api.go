// Package repofetch pulls documentation-relevant files and issue threads out
// of a GitHub repository.
//
// Fetching walks the repository in priority order: well-known top-level docs
// first, then directories whose names signal their role (API types, CRDs,
// charts), then generic documentation trees. The walk is bounded by a file
// budget, a directory depth limit and a per-file size ceiling.
package repofetch

import (
	"context"
	"time"
)

// Entry is one item in a directory listing.
type Entry struct {
	Path    string
	Type    string // "file" or "dir"
	Size    int
	HTMLURL string
}

// FileData is one fetched file with its decoded content.
type FileData struct {
	Path    string
	Size    int
	HTMLURL string
	Content string
}

// ContentsAPI reads repository contents. For a file path it returns the file
// with nil entries; for a directory it returns nil file with the listing.
type ContentsAPI interface {
	GetContents(ctx context.Context, path string) (*FileData, []Entry, error)
}

// Issue is one issue thread with its leading comments.
type Issue struct {
	Number    int
	Title     string
	State     string
	Body      string
	Labels    []string
	HTMLURL   string
	UpdatedAt time.Time
	Comments  []string
}

// IssuesAPI lists issue threads. state is "open" or "closed"; pull requests
// are excluded.
type IssuesAPI interface {
	ListIssues(ctx context.Context, state string, limit int) ([]Issue, error)
}
