package provider

import "errors"

// Sentinel kinds for provider errors.
var (
	ErrTrackNotFound = errors.New("track not found in catalog")
	ErrBadResponse   = errors.New("malformed provider response")
)
