// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/objstore"
)

// action is what recovery does with one fragment once it is known to be
// safe. Failures are reported separately as errors.
type action int

const (
	actionNone action = iota
	// actionPut uploads the file as a standalone object.
	actionPut
	// actionFinalPart uploads the file as the last part of an open upload.
	actionFinalPart
	// actionAbort aborts the open upload.
	actionAbort
	// actionDiscard only removes the local file.
	actionDiscard
)

func (a action) String() string {
	switch a {
	case actionPut:
		return "put"
	case actionFinalPart:
		return "final_part"
	case actionAbort:
		return "abort"
	case actionDiscard:
		return "discard"
	default:
		return "none"
	}
}

// describe is the operator-facing form used by Plan.
func (a action) describe() string {
	switch a {
	case actionPut:
		return "put object"
	case actionFinalPart:
		return "upload final part"
	case actionAbort:
		return "abort upload"
	case actionDiscard:
		return "delete local file"
	default:
		return "none"
	}
}

func (a action) remote() bool {
	return a == actionPut || a == actionFinalPart || a == actionAbort
}

// bufferFile is a parsed file in the buffer directory.
type bufferFile struct {
	path  string
	name  fragment.Name
	class fragment.Classification
	size  int64
}

// decidePartOne picks the action for a first-part file. Unrecognized keys
// have no action.
func decidePartOne(class fragment.Classification) (action, error) {
	switch class {
	case fragment.WriteAheadLog:
		return actionPut, nil
	case fragment.CompactionTemp:
		return actionDiscard, nil
	default:
		return actionNone, ErrUnrecognizedKey
	}
}

// decideContinuation picks the action for a later-part file given its
// open upload, which may be nil.
func decideContinuation(class fragment.Classification, session *objstore.Upload) (action, error) {
	var act action
	switch class {
	case fragment.WriteAheadLog:
		act = actionFinalPart
	case fragment.CompactionTemp:
		act = actionAbort
	default:
		return actionNone, ErrUnrecognizedKey
	}
	if session == nil {
		return actionNone, ErrMissingSession
	}
	return act, nil
}

// Plan returns the action recover takes for a fragment of the given class.
// A later part is assumed to have a matching open upload.
func Plan(name fragment.Name, class fragment.Classification) (string, error) {
	var (
		act action
		err error
	)
	if name.IsPartOne() {
		act, err = decidePartOne(class)
	} else {
		act, err = decideContinuation(class, &objstore.Upload{Key: name.Key})
	}
	if err != nil {
		return "", err
	}
	return act.describe(), nil
}

// finalizePartOne resolves a first-part file. The local file is removed only
// after the remote action succeeds.
func (e *Engine) finalizePartOne(ctx context.Context, f bufferFile) (Outcome, error) {
	out := outcomeFor(f)
	if !f.name.IsPartOne() {
		return e.fail(out, "finalize part one", fmt.Errorf("%w: part %d is not a first part", ErrShapeMismatch, f.name.PartNumber))
	}

	act, err := decidePartOne(f.class)
	if err != nil {
		return e.fail(out, "classify", err)
	}
	out.act, out.Action = act, act.String()

	return e.apply(ctx, f, out, act, nil)
}

// finalizeContinuation resolves a later-part file against its open upload.
func (e *Engine) finalizeContinuation(ctx context.Context, f bufferFile, session *objstore.Upload) (Outcome, error) {
	out := outcomeFor(f)
	if f.name.IsPartOne() {
		return e.fail(out, "finalize continuation", fmt.Errorf("%w: part one has no open upload to finish", ErrShapeMismatch))
	}

	act, err := decideContinuation(f.class, session)
	if err != nil {
		return e.fail(out, "classify", err)
	}
	out.act, out.Action = act, act.String()

	return e.apply(ctx, f, out, act, session)
}

func (e *Engine) apply(ctx context.Context, f bufferFile, out Outcome, act action, session *objstore.Upload) (Outcome, error) {
	log := logger.Ctx(ctx).With().
		Str("file", f.name.FileName).
		Str("key", f.name.Key).
		Int("part", f.name.PartNumber).
		Str("class", f.class.String()).
		Str("action", act.String()).
		Logger()
	if session != nil {
		log = log.With().Str("upload_id", session.UploadID).Logger()
	}

	if e.cfg.DryRun {
		log.Info().Int64("size", f.size).Msg("[DRY-RUN] would resolve fragment")
		return out, nil
	}

	var err error
	switch act {
	case actionPut:
		err = e.store.PutObject(ctx, e.cfg.Bucket, f.name.Key, f.path)
	case actionFinalPart:
		err = e.store.UploadPart(ctx, e.cfg.Bucket, f.name.Key, session.UploadID, f.name.PartNumber, f.path, true)
	case actionAbort:
		err = e.store.AbortMultipartUpload(ctx, e.cfg.Bucket, session.Key, session.UploadID)
	case actionDiscard:
		log.Info().Msg("compaction temp file never reached the store")
	}
	if err != nil {
		return e.fail(out, act.String(), fmt.Errorf("%w: %w", ErrRemoteOperation, err))
	}
	if act.remote() {
		log.Info().Int64("size", f.size).Msg("remote action completed")
	}

	if err := e.remove(f.path); err != nil {
		if act.remote() {
			err = fmt.Errorf("%w: %w", ErrUnsafeDelete, err)
		} else {
			err = fmt.Errorf("%w: %w", ErrLocalIO, err)
		}
		log.Error().Err(err).Msg("failed to delete local fragment")
		return e.fail(out, "delete", err)
	}

	log.Debug().Msg("deleted local fragment")
	return out, nil
}

func (e *Engine) fail(out Outcome, op string, err error) (Outcome, error) {
	ferr := &FragmentError{File: out.File, Key: out.Key, Op: op, Err: err}
	out.Err = ferr
	return out, ferr
}

func outcomeFor(f bufferFile) Outcome {
	return Outcome{
		File:       filepath.Base(f.path),
		Key:        f.name.Key,
		PartNumber: f.name.PartNumber,
		Class:      f.class,
		Bytes:      f.size,
	}
}

// loadBufferFile parses and classifies one file of the buffer directory.
func (e *Engine) loadBufferFile(fileName string) (bufferFile, error) {
	path := filepath.Join(e.cfg.BufferDir, fileName)
	f := bufferFile{path: path}

	name, err := fragment.Parse(fileName)
	if err != nil {
		return f, &FragmentError{File: fileName, Op: "parse", Err: err}
	}
	f.name = name
	f.class = fragment.Classify(name.Key, e.cfg.WALPrefix)

	info, err := os.Stat(path)
	if err != nil {
		return f, &FragmentError{File: fileName, Key: name.Key, Op: "stat", Err: fmt.Errorf("%w: %w", ErrLocalIO, err)}
	}
	f.size = info.Size()
	return f, nil
}
