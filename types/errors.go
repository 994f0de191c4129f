package types

import "errors"

// per-device failures, handled locally by the dispatcher
var (
	ErrDeviceUnavailable   = errors.New("device unavailable")
	ErrGeometryUnknown     = errors.New("screen geometry unknown")
	ErrCommandTimeout      = errors.New("device command timed out")
	ErrCommandFailure      = errors.New("device command failed")
	ErrOrientationMismatch = errors.New("orientation mismatch")
	ErrCycleTimeout        = errors.New("sync cycle timed out")
)

// guard rejections and session-level conditions
var (
	ErrNothingToSync = errors.New("nothing to sync: no reachable secondary devices")
	ErrSyncBusy      = errors.New("sync busy: previous cycle still in progress")
	ErrDebounced     = errors.New("event arrived before minimum interval elapsed")
	ErrSyncDisabled  = errors.New("sync is not enabled")
)
