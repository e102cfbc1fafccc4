// Package rank holds the Rank entity (§3, §4.8): the monotone,
// non-decreasing achievement tier derived from a user's total active
// slots across all three programs.
package rank

import "time"

// HistoryEntry records one rank change. History is append-only; the
// current rank is always history[len(history)-1].Rank.
type HistoryEntry struct {
	Rank      int       `json:"rank"`
	ChangedAt time.Time `json:"changed_at"`
}

// Rank is the current rank and full history for one user.
type Rank struct {
	UserID     string         `json:"user_id"`
	RankNumber int            `json:"rank_number"`
	History    []HistoryEntry `json:"history"`
}
