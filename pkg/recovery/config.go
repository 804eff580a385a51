// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"
)

// Config holds the per-run settings of the engine.
type Config struct {
	// Bucket receives finalized objects and holds the open uploads.
	Bucket string

	// BufferDir is the upload client's spill directory.
	BufferDir string

	// WALPrefix is the full per-host prefix, see fragment.WALPrefix.
	WALPrefix string

	// ContinueOnError attempts every fragment and returns the joined
	// failures. The default stops at the first failing fragment.
	ContinueOnError bool

	// DryRun decides and logs every action without remote writes or local
	// deletes. Open uploads are still listed.
	DryRun bool
}

// Validate checks required fields and that BufferDir is a directory.
func (c Config) Validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if c.BufferDir == "" {
		errs = append(errs, errors.New("buffer directory is required"))
	}
	if c.WALPrefix == "" {
		errs = append(errs, errors.New("wal prefix is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	if err := utils.CheckDirectory(c.BufferDir); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBufferDir, err)
	}
	return nil
}
