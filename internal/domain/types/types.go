// Package types contains outward-facing types returned to the request layer.
package types

import "time"

// LeaderboardEntry is one row of a global artist leaderboard.
type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	SongID    string  `json:"song_id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Album     string  `json:"album,omitempty"`
	Rating    float64 `json:"rating"`
	Strength  float64 `json:"strength"`
	VoteCount int     `json:"vote_count"`
}

// Leaderboard is the global ranking view for one artist. Pending and
// LastUpdatedAt are always present so staleness is visible without errors.
type Leaderboard struct {
	Artist             string             `json:"artist"`
	Entries            []LeaderboardEntry `json:"entries"`
	TotalComparisons   int                `json:"total_comparisons"`
	PendingComparisons int                `json:"pending_comparisons"`
	LastUpdatedAt      time.Time          `json:"last_updated_at"`
}

// SessionRating is one song's session-local rating snapshot.
type SessionRating struct {
	SongID   string  `json:"song_id"`
	Rating   float64 `json:"rating"`
	Strength float64 `json:"strength"`
}

// DuelResult is returned to the caller after a duel is recorded.
type DuelResult struct {
	SessionID        string          `json:"session_id"`
	DuelCount        int             `json:"duel_count"`
	Recomputed       bool            `json:"recomputed"`
	ConvergenceScore float64         `json:"convergence_score"`
	Ratings          []SessionRating `json:"ratings"`
}

// MergeReview is a merge suggestion surfaced to the request layer.
type MergeReview struct {
	KeepID     string  `json:"keep_id"`
	RemoveID   string  `json:"remove_id"`
	Confidence float64 `json:"confidence"`
}

// SessionInfo is returned after session creation.
type SessionInfo struct {
	SessionID   string        `json:"session_id"`
	SongCount   int           `json:"song_count"`
	Suggestions []MergeReview `json:"suggestions,omitempty"`
}
