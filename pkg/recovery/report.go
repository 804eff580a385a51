// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
)

// Outcome is the result for one buffer file.
type Outcome struct {
	File       string
	Key        string
	PartNumber int
	Class      fragment.Classification
	Action     string
	Bytes      int64
	Err        error

	act action
}

// Report summarizes a recovery run.
type Report struct {
	DryRun bool

	FilesSeen         int
	Put               int
	FinalParts        int
	Aborted           int
	Discarded         int
	Failed            int
	DuplicateSessions int
	BytesFinalized    int64

	Duration time.Duration
	Outcomes []Outcome
}

// Actions is the number of fragments resolved, remote or local.
func (r *Report) Actions() int {
	return r.Put + r.FinalParts + r.Aborted + r.Discarded
}

func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil {
		r.Failed++
		return
	}

	switch o.act {
	case actionPut:
		r.Put++
		r.BytesFinalized += o.Bytes
	case actionFinalPart:
		r.FinalParts++
		r.BytesFinalized += o.Bytes
	case actionAbort:
		r.Aborted++
	case actionDiscard:
		r.Discarded++
	}
}
