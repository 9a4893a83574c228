package transport

import "errors"

// Error is the normalized error taxonomy (§4.1): raw driver codes are
// mapped through Translate into one of these sentinels so the core
// never has to branch on a particular driver's error type.
var (
	ErrSuccess          error = nil
	ErrNotInitialized         = errors.New("transport: not initialized")
	ErrInvalidParam           = errors.New("transport: invalid parameter")
	ErrOutOfMemory            = errors.New("transport: out of memory")
	ErrTimeout                = errors.New("transport: timeout")
	ErrConnectionFailed       = errors.New("transport: connection failed")
	ErrConnectionClosed       = errors.New("transport: connection closed")
	ErrBusy                   = errors.New("transport: busy")
	ErrNotSupported           = errors.New("transport: not supported")
	ErrUnknown                = errors.New("transport: unknown error")

	// ErrPending is CheckAsync's sentinel "still pending" value (§4.1),
	// never surfaced to a caller as a terminal error.
	ErrPending = errors.New("transport: operation pending")

	// ErrNoSlots is the async handle pool's exhaustion error (§4.2).
	ErrNoSlots = errors.New("transport: no free async slots")
)

// Translate maps a raw driver error into the normalized taxonomy.
// netDriver and reltDriver both route their errors through this so a
// caller coded against the Driver interface never sees a raw
// net.OpError or relt error.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrInvalidParam),
		errors.Is(err, ErrOutOfMemory), errors.Is(err, ErrTimeout),
		errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrBusy), errors.Is(err, ErrNotSupported):
		return err
	default:
		return classifyNetError(err)
	}
}
