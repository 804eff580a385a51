// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
)

var (
	// ErrMalformedName is re-exported so callers only need this package.
	ErrMalformedName = fragment.ErrMalformedName

	ErrUnrecognizedKey  = errors.New("key is neither a write-ahead log nor a compaction temp file")
	ErrMissingSession   = errors.New("no open multipart upload for key")
	ErrRemoteOperation  = errors.New("object store operation failed")
	ErrLocalIO          = errors.New("local i/o failure")
	ErrShapeMismatch    = errors.New("fragment shape does not match finalize path")
	ErrServiceRunning   = errors.New("tablet server is running")
	ErrInvalidBufferDir = errors.New("invalid buffer directory")
	ErrInvalidConfig    = errors.New("invalid recovery config")

	// ErrUnsafeDelete means the remote side effect happened but the local file
	// is still there. Re-running would repeat the remote action.
	ErrUnsafeDelete = fmt.Errorf("%w: delete after remote action failed, unsafe to retry", ErrLocalIO)
)

// FragmentError is a failure scoped to one buffer file.
type FragmentError struct {
	File string
	Key  string
	Op   string
	Err  error
}

func (e *FragmentError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s %s (key %q): %v", e.Op, e.File, e.Key, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// IsUnsafe reports whether err leaves a fragment that must not be retried
// without operator attention.
func IsUnsafe(err error) bool {
	return errors.Is(err, ErrUnsafeDelete)
}
