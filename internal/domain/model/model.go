// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Song is a catalog item that can take part in duels. Songs are created on
// first sighting and mutated only by deduplication (merge) and by the global
// aggregation executor (rating fields).
type Song struct {
	ID     string
	Title  string
	Artist string
	Album  string

	// Cross-platform identity. ISRC is the canonical join key across
	// sessions and platforms; the platform catalog IDs are secondary
	// identity signals used during canonical selection.
	ISRC           string
	SpotifyID      string
	AppleMusicID   string
	NormalizedName string

	// Global rating fields, owned by the aggregation executor.
	GlobalStrength  float64
	GlobalRating    float64
	GlobalVoteCount int
}

// IdentitySignals counts how many identity fields the song carries. A song
// with a cross-platform code must win canonical selection over one without,
// so platform-sourced duplicates cannot permanently shadow it.
func (s *Song) IdentitySignals() int {
	n := 0
	for _, f := range []string{s.ISRC, s.SpotifyID, s.AppleMusicID, s.Album} {
		if f != "" {
			n++
		}
	}
	return n
}

// ArtistKey returns the partition key for global aggregation. Case is folded
// so "Demi Lovato" and "demi lovato" share one aggregate record.
func ArtistKey(artist string) string {
	return strings.ToLower(strings.TrimSpace(artist))
}

// Duel is one immutable pairwise comparison outcome. Winner is empty for a
// tie. Duels are append-only and are the unit of truth for all rating
// computation; ratings are derived, never authoritative.
type Duel struct {
	ID                string
	SessionID         string
	SongA             string
	SongB             string
	Winner            string // song ID, or "" when IsTie
	IsTie             bool
	DecisionLatencyMs int
	RecordedAt        time.Time
}

// SessionStatus enumerates session lifecycle states.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionComplete SessionStatus = "complete"
)

// SessionSong carries the session-local rating snapshot for one song.
// Owned exclusively by the session recompute path.
type SessionSong struct {
	SongID        string
	LocalStrength float64
	LocalRating   float64
}

// Session is one user's ordered, deduplicated ranking run. Immutable once
// marked complete.
type Session struct {
	ID               string
	UserID           string
	Artist           string
	Songs            []SessionSong
	DuelCount        int
	ConvergenceScore float64
	PreviousTopK     []string // song IDs from the previous recompute, best first
	Status           SessionStatus
	CreatedAt        time.Time
}

// ArtistState is the per-artist aggregate record. Mutated only by the
// aggregation executor under the single-flight guarantee.
// Invariant: ProcessedDuelCount never exceeds the partition's duel total;
// the difference is the pending count.
type ArtistState struct {
	ArtistKey          string
	LastUpdateAt       time.Time
	ProcessedDuelCount int
}

// MergeSuggestion is a medium-confidence duplicate pair emitted for human
// review instead of being merged automatically.
type MergeSuggestion struct {
	KeepID     string
	RemoveID   string
	Confidence float64
}
