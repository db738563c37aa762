package coordinator

import "errors"

var (
	// ErrSetupFailed wraps the cause of a failed first refresh.
	ErrSetupFailed = errors.New("coordinator: first refresh failed")

	// ErrStopped is returned by operations on a stopped coordinator.
	ErrStopped = errors.New("coordinator: stopped")

	// ErrInvalidInterval is returned for a non-positive polling interval.
	ErrInvalidInterval = errors.New("coordinator: invalid interval")

	// ErrFetcherRequired is returned by New without a Fetcher.
	ErrFetcherRequired = errors.New("coordinator: fetcher is required")
)
