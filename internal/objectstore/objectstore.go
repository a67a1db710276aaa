// Package objectstore lists documentation objects and attaches their bodies
// and download URLs before the transform pass.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// DefaultMaxBodyBytes caps how much of an HTML object is read.
const DefaultMaxBodyBytes = 32 << 20

// ErrBodyTooLarge is returned when an HTML object exceeds the read cap.
// A truncated page would still parse, so it is refused instead.
var ErrBodyTooLarge = errors.New("object body exceeds size limit")

// Source yields the objects of one run.
type Source interface {
	// List returns every object of the run. Failure aborts the run.
	List(ctx context.Context) ([]doctree.SourceObject, error)
	// Load returns obj with URL set and, for HTML keys, Body set.
	Load(ctx context.Context, obj doctree.SourceObject) (doctree.SourceObject, error)
}

// RetryableError marks a transient store failure.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v (retryable)", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// readBody reads r fully, failing with ErrBodyTooLarge past limit bytes.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}
