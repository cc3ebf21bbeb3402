// Package repository defines the duel store interface and errors.
package repository

import (
	"context"

	"github.com/okian/duet/internal/domain/model"
)

// GlobalUpdate is one song's new global rating produced by an aggregation
// run, applied in bulk so a leaderboard never shows a half-written run.
type GlobalUpdate struct {
	SongID    string
	Strength  float64
	Rating    float64
	VoteCount int
}

// Store provides read/write access to songs, duels, sessions and per-artist
// aggregate state. Duels are append-only; everything else is derived.
type Store interface {
	// UpsertSongs inserts songs or refreshes the catalog fields of
	// existing ones. Global rating fields are never touched here.
	UpsertSongs(ctx context.Context, songs []model.Song) error
	// GetSong returns a song by ID. Returns ErrSongNotFound if unknown.
	GetSong(ctx context.Context, id string) (model.Song, error)
	// ListArtistSongs returns all songs under an artist key, unordered.
	ListArtistSongs(ctx context.Context, artistKey string) ([]model.Song, error)
	// MergeSongs reassigns the removed song's duels to the kept song and
	// deletes the removed song. Duels that would become self-pairs after
	// reassignment are dropped.
	MergeSongs(ctx context.Context, keepID, removeID string) error

	// AppendDuel records one immutable duel under the artist partition.
	AppendDuel(ctx context.Context, artistKey string, d model.Duel) error
	// ListSessionDuels returns a session's duels in recording order.
	ListSessionDuels(ctx context.Context, sessionID string) ([]model.Duel, error)
	// ListArtistDuels returns every duel in an artist partition in
	// recording order.
	ListArtistDuels(ctx context.Context, artistKey string) ([]model.Duel, error)
	// CountArtistDuels returns the partition's duel total.
	CountArtistDuels(ctx context.Context, artistKey string) (int, error)

	// CreateSession stores a new session.
	CreateSession(ctx context.Context, s model.Session) error
	// GetSession returns a session by ID. Returns ErrSessionNotFound if
	// unknown.
	GetSession(ctx context.Context, id string) (model.Session, error)
	// UpdateSessionRatings replaces a session's local ratings snapshot
	// after a recompute. Fails with ErrSessionComplete on a completed
	// session.
	UpdateSessionRatings(ctx context.Context, id string, songs []model.SessionSong, duelCount int, convergenceScore float64, topK []string) error
	// MarkSessionComplete freezes a session.
	MarkSessionComplete(ctx context.Context, id string) error

	// TopSongs returns an artist's songs ordered by global strength
	// descending, limited to n. n <= 0 is ErrInvalidLimit.
	TopSongs(ctx context.Context, artistKey string, n int) ([]model.Song, error)
	// BulkUpdateGlobalRatings applies an aggregation run's output
	// atomically with respect to TopSongs readers.
	BulkUpdateGlobalRatings(ctx context.Context, updates []GlobalUpdate) error

	// AggregateState returns the artist's aggregate record. An unknown
	// artist returns a zero-valued state, not an error.
	AggregateState(ctx context.Context, artistKey string) (model.ArtistState, error)
	// SaveAggregateState stores the artist's aggregate record.
	SaveAggregateState(ctx context.Context, st model.ArtistState) error
}
