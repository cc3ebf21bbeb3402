package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrTooFewSongs      = errors.New("session needs at least two distinct songs")
	ErrSongNotInSession = errors.New("song is not part of the session")
	ErrInvalidDuel      = errors.New("invalid duel")
	ErrNotStarted       = errors.New("service not started")
)
