package repofetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// ErrInvalidRepoURL reports a URL that does not name a GitHub repository.
var ErrInvalidRepoURL = errors.New("invalid repository url")

// ParseRepoURL extracts owner and repository name from a GitHub URL such as
// https://github.com/owner/repo, tolerating a trailing .git suffix and extra
// path segments.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	if !strings.HasSuffix(u.Host, "github.com") {
		return "", "", fmt.Errorf("%w: host %q", ErrInvalidRepoURL, u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: path %q", ErrInvalidRepoURL, u.Path)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// GitHubClient adapts go-github to the ContentsAPI and IssuesAPI interfaces
// for a single repository.
type GitHubClient struct {
	client *gh.Client
	owner  string
	repo   string
}

// NewGitHubClient creates a client bound to one repository. An empty token
// yields unauthenticated access with GitHub's lower rate limits.
func NewGitHubClient(ctx context.Context, repoURL, token string) (*GitHubClient, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var client *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = gh.NewClient(nil)
	}

	return &GitHubClient{client: client, owner: owner, repo: repo}, nil
}

// GetContents implements ContentsAPI.
func (g *GitHubClient) GetContents(ctx context.Context, path string) (*FileData, []Entry, error) {
	file, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("getting contents of %q: %w", path, err)
	}

	if file != nil {
		content, err := file.GetContent()
		if err != nil {
			return nil, nil, fmt.Errorf("decoding %q: %w", path, err)
		}
		return &FileData{
			Path:    file.GetPath(),
			Size:    file.GetSize(),
			HTMLURL: file.GetHTMLURL(),
			Content: content,
		}, nil, nil
	}

	entries := make([]Entry, 0, len(dir))
	for _, e := range dir {
		entries = append(entries, Entry{
			Path:    e.GetPath(),
			Type:    e.GetType(),
			Size:    e.GetSize(),
			HTMLURL: e.GetHTMLURL(),
		})
	}
	return nil, entries, nil
}

// ListIssues implements IssuesAPI. Results come back most recently updated
// first; pull requests are filtered out.
func (g *GitHubClient) ListIssues(ctx context.Context, state string, limit int) ([]Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var issues []Issue
	for len(issues) < limit {
		page, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing %s issues: %w", state, err)
		}

		for _, it := range page {
			if it.IsPullRequest() {
				continue
			}
			issue := Issue{
				Number:    it.GetNumber(),
				Title:     it.GetTitle(),
				State:     it.GetState(),
				Body:      it.GetBody(),
				HTMLURL:   it.GetHTMLURL(),
				UpdatedAt: it.GetUpdatedAt().Time,
			}
			for _, l := range it.Labels {
				issue.Labels = append(issue.Labels, l.GetName())
			}
			if it.GetComments() > 0 {
				comments, err := g.listComments(ctx, it.GetNumber())
				if err != nil {
					return nil, err
				}
				issue.Comments = comments
			}
			issues = append(issues, issue)
			if len(issues) >= limit {
				break
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return issues, nil
}

// listComments returns up to the first 10 comments of an issue.
func (g *GitHubClient) listComments(ctx context.Context, number int) ([]string, error) {
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 10}}
	page, _, err := g.client.Issues.ListComments(ctx, g.owner, g.repo, number, opts)
	if err != nil {
		return nil, fmt.Errorf("listing comments for issue #%d: %w", number, err)
	}

	comments := make([]string, 0, len(page))
	for _, c := range page {
		if body := strings.TrimSpace(c.GetBody()); body != "" {
			comments = append(comments, body)
		}
	}
	return comments, nil
}
