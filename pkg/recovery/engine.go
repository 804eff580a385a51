// Package recovery finishes or discards the upload fragments a crashed
// tablet server left in its S3A buffer directory.
//
// First-part files are resolved from their key alone. Later-part files are
// matched against the bucket's open multipart uploads. A local file is only
// deleted after its remote action succeeded, so an interrupted run can be
// repeated.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/objstore"
)

// Engine runs one recovery pass over a buffer directory.
type Engine struct {
	cfg   Config
	store objstore.Store

	remove func(path string) error
}

// NewEngine validates cfg and returns an engine bound to store.
func NewEngine(cfg Config, store objstore.Store) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: object store is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		remove: os.Remove,
	}, nil
}

// Run processes every fragment in the buffer directory. The report is
// returned even when err is non-nil and covers the fragments attempted.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{DryRun: e.cfg.DryRun}
	defer func() {
		report.Duration = time.Since(start)
		RecoveryDuration.Set(report.Duration.Seconds())
	}()

	log := logger.Ctx(ctx)

	partOne, continuation, err := e.listFragments()
	if err != nil {
		return report, err
	}
	report.FilesSeen = len(partOne) + len(continuation)

	if report.FilesSeen == 0 {
		log.Info().Str("buffer_dir", e.cfg.BufferDir).Msg("buffer directory is empty, nothing to recover")
		return report, nil
	}

	log.Info().
		Str("buffer_dir", e.cfg.BufferDir).
		Str("bucket", e.cfg.Bucket).
		Str("wal_prefix", e.cfg.WALPrefix).
		Int("part_one", len(partOne)).
		Int("continuation", len(continuation)).
		Bool("dry_run", e.cfg.DryRun).
		Msg("starting recovery")

	var errs []error

	for _, fileName := range partOne {
		if err := ctx.Err(); err != nil {
			return report, errors.Join(append(errs, err)...)
		}

		out, err := e.processPartOne(ctx, fileName)
		e.observe(ctx, report, out, err)
		if err != nil {
			errs = append(errs, err)
			if !e.cfg.ContinueOnError {
				return report, err
			}
		}
	}

	if len(continuation) > 0 {
		sessions, err := e.openSessions(ctx, report)
		if err != nil {
			return report, errors.Join(append(errs, err)...)
		}

		for _, fileName := range continuation {
			if err := ctx.Err(); err != nil {
				return report, errors.Join(append(errs, err)...)
			}

			out, err := e.processContinuation(ctx, fileName, sessions)
			e.observe(ctx, report, out, err)
			if err != nil {
				errs = append(errs, err)
				if !e.cfg.ContinueOnError {
					return report, err
				}
			}
		}
	}

	log.Info().
		Int("files", report.FilesSeen).
		Int("put", report.Put).
		Int("final_parts", report.FinalParts).
		Int("aborted", report.Aborted).
		Int("discarded", report.Discarded).
		Int("failed", report.Failed).
		Int64("bytes_finalized", report.BytesFinalized).
		Msg("recovery finished")

	return report, errors.Join(errs...)
}

func (e *Engine) processPartOne(ctx context.Context, fileName string) (Outcome, error) {
	f, err := e.loadBufferFile(fileName)
	if err != nil {
		return Outcome{File: fileName, Key: f.name.Key, Err: err}, err
	}
	return e.finalizePartOne(ctx, f)
}

func (e *Engine) processContinuation(ctx context.Context, fileName string, sessions map[string]objstore.Upload) (Outcome, error) {
	f, err := e.loadBufferFile(fileName)
	if err != nil {
		return Outcome{File: fileName, Key: f.name.Key, Err: err}, err
	}

	var session *objstore.Upload
	if s, ok := sessions[f.name.Key]; ok {
		session = &s
	}
	return e.finalizeContinuation(ctx, f, session)
}

func (e *Engine) observe(ctx context.Context, report *Report, out Outcome, err error) {
	if err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("file", out.File).
			Str("key", out.Key).
			Msg("failed to recover fragment")
	}

	report.record(out)
	observeOutcome(out, e.cfg.DryRun)
	if err == nil && !e.cfg.DryRun && (out.act == actionPut || out.act == actionFinalPart) {
		BytesFinalizedTotal.Add(float64(out.Bytes))
	}
}

// listFragments returns the regular files of the buffer directory split into
// first parts and continuations, each in file name order.
func (e *Engine) listFragments() (partOne, continuation []string, err error) {
	entries, err := os.ReadDir(e.cfg.BufferDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list %s: %w", ErrLocalIO, e.cfg.BufferDir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if fragment.IsPartOne(entry.Name()) {
			partOne = append(partOne, entry.Name())
		} else {
			continuation = append(continuation, entry.Name())
		}
	}
	return partOne, continuation, nil
}

// openSessions lists the bucket's open uploads once and indexes them by key.
// A later upload for the same key replaces an earlier one.
func (e *Engine) openSessions(ctx context.Context, report *Report) (map[string]objstore.Upload, error) {
	uploads, err := e.store.ListMultipartUploads(ctx, e.cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: list multipart uploads in %s: %w", ErrRemoteOperation, e.cfg.Bucket, err)
	}

	sessions := make(map[string]objstore.Upload, len(uploads))
	for _, u := range uploads {
		if prev, ok := sessions[u.Key]; ok {
			report.DuplicateSessions++
			DuplicateSessionsTotal.Inc()
			logger.Ctx(ctx).Warn().
				Str("key", u.Key).
				Str("replaced_upload_id", prev.UploadID).
				Str("upload_id", u.UploadID).
				Msg("multiple open uploads for key, using the last one listed")
		}
		sessions[u.Key] = u
	}

	logger.Ctx(ctx).Debug().Int("uploads", len(uploads)).Msg("listed open multipart uploads")
	return sessions, nil
}
