// Package eventlog provides access to the shared queue event log: a single
// newline-delimited JSON document held in a remote versioned content store.
// Writers use optimistic concurrency: every write carries the version token
// returned by the preceding read and fails with ErrConflict when another
// participant wrote in between.
package eventlog

import (
	"context"
	"errors"
)

// ErrConflict reports that the store content changed since it was read.
var ErrConflict = errors.New("eventlog: version conflict")

// Store is read/write access to the shared log document. Read returns the
// full content plus an opaque version token; Write replaces the content if
// and only if the token still matches. A missing document reads as empty
// content with an empty token.
type Store interface {
	Read(ctx context.Context) (content, version string, err error)
	Write(ctx context.Context, content, version string) error
}
