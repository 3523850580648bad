package audio

import "errors"

// ----- Errors ----- //

var (
	// ErrPlatformUnavailable is returned by Initialize when no output device can be opened.
	ErrPlatformUnavailable = errors.New("audio platform unavailable")
	// ErrInvalidParameter is returned by setters for out-of-range or unknown values.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMalformedPreset is returned when a preset document cannot be applied as a whole.
	ErrMalformedPreset = errors.New("malformed preset")
	// ErrNodeConnection reports a failed edge creation or removal.
	ErrNodeConnection = errors.New("node connection failure")
	// ErrNotInitialized is returned by lifecycle operations that need a running engine.
	ErrNotInitialized = errors.New("engine not initialized")
)
