package capture

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the capture source cannot supply real audio,
// for example because the recorder binary is missing or the device is busy.
// Callers are expected to fall back to substitute generation rather than
// treat this as fatal.
var ErrUnavailable = errors.New("capture source unavailable")

// Source is a push-driven producer of raw PCM chunks. After a successful
// Start, the source invokes onChunk zero or more times from its own
// goroutine, with arbitrary chunk sizes and no timing guarantee, until Stop
// is called or the context is cancelled.
type Source interface {
	Start(ctx context.Context, onChunk func([]byte)) error
	Stop() error
}
