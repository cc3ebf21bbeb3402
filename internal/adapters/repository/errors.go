package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrSongNotFound    = errors.New("song not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionComplete = errors.New("session already complete")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
)
