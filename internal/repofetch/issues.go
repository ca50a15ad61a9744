package repofetch

import (
	"context"
	"fmt"
)

// FetchIssues returns up to limit issue threads, open issues first, then
// closed ones filling the remaining budget. Within each state the issues are
// ordered by most recent update.
func FetchIssues(ctx context.Context, api IssuesAPI, limit int) ([]Issue, error) {
	if limit <= 0 {
		limit = 100
	}

	open, err := api.ListIssues(ctx, "open", limit)
	if err != nil {
		return nil, fmt.Errorf("fetching open issues: %w", err)
	}
	if len(open) >= limit {
		return open[:limit], nil
	}

	closed, err := api.ListIssues(ctx, "closed", limit-len(open))
	if err != nil {
		return nil, fmt.Errorf("fetching closed issues: %w", err)
	}
	return append(open, closed...), nil
}
