package integration

import (
	"errors"

	"github.com/nerrad567/gray-logic-weather/internal/coordinator"
)

var (
	// ErrSetupFailed wraps the classified cause of a failed first refresh.
	ErrSetupFailed = coordinator.ErrSetupFailed

	// ErrCannotConnect is returned when the probe during AddStation fails.
	ErrCannotConnect = errors.New("integration: cannot connect to station")

	// ErrNotLoaded is returned for operations on an entry that is not running.
	ErrNotLoaded = errors.New("integration: station not loaded")

	// ErrAlreadyLoaded is returned when setting up an entry twice.
	ErrAlreadyLoaded = errors.New("integration: station already loaded")

	// ErrSetupCancelled is returned by a setup whose entry was removed
	// while its first refresh was running.
	ErrSetupCancelled = errors.New("integration: station removed during setup")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("integration: manager closed")
)
