package model

import "errors"

var (
	// ErrNotFound: the track or playlist does not exist. Delete treats it as success.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the target name is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalidArgument: the caller supplied an unusable value.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrAlreadyNormalized   = errors.New("track already has a backup; restore it first")
	ErrNoBackup            = errors.New("track has no backup to restore")
	ErrTrackMissing        = errors.New("playlist references a missing track")
	ErrEmptyPlaylist       = errors.New("playlist has no tracks")
	ErrConcatenationFailed = errors.New("concatenation failed")
	ErrQueryTooShort       = errors.New("query must be at least 2 characters")
)
