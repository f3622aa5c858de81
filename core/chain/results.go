package chain

import (
	"context"
	"time"
)

// Result is the per-user projection shown on the dashboard: who answered,
// what they answered at each step (keyed by step name), and when they last
// interacted.
type Result struct {
	User            User              `json:"user"`
	Answers         map[string]string `json:"answers"`
	LastInteraction time.Time         `json:"last_interaction"`
}

// ResultPage is one page of results ordered by most recent interaction.
type ResultPage struct {
	Items      []Result `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

const (
	// DefaultPerPage is used when a results query passes no page size.
	DefaultPerPage = 10
	// MaxPerPage bounds a single results page.
	MaxPerPage = 100
)

// NormalizePage clamps pagination parameters into their allowed ranges.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// PageCount computes the number of pages for a total at the given size.
func PageCount(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Recorder persists answers durably and exposes the dashboard read path.
// Record is idempotent per (session, step name): a step revisited through a
// cycle overwrites its previous answer.
type Recorder interface {
	// Record stores the answer against the step name on the session's
	// durable answer map and stamps the last-interaction time.
	Record(ctx context.Context, s *Session, stepName, answer string) error

	// ListResults returns paginated per-user answer maps for a chain,
	// ordered by most recent interaction first.
	ListResults(ctx context.Context, botID, chainID int64, page, perPage int) (*ResultPage, error)
}
