// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"github.com/LeeDigitalWorks/s3abuffer/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FragmentsTotal counts processed fragments. status: "ok", "failed", "dry_run"
	FragmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3abuffer",
		Name:      "fragments_total",
		Help:      "Buffer fragments processed by recovery",
	}, []string{"class", "action", "status"})

	BytesFinalizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "s3abuffer",
		Name:      "bytes_finalized_total",
		Help:      "Bytes uploaded as standalone objects or final parts",
	})

	RecoveryDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "s3abuffer",
		Name:      "recovery_duration_seconds",
		Help:      "Wall time of the last recovery run",
	})

	DuplicateSessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "s3abuffer",
		Name:      "duplicate_sessions_total",
		Help:      "Open multipart uploads shadowed by a later upload for the same key",
	})
)

func init() {
	debug.Registry().MustRegister(
		FragmentsTotal,
		BytesFinalizedTotal,
		RecoveryDuration,
		DuplicateSessionsTotal,
	)
}

func observeOutcome(o Outcome, dryRun bool) {
	status := "ok"
	switch {
	case o.Err != nil:
		status = "failed"
	case dryRun:
		status = "dry_run"
	}
	action := o.Action
	if action == "" {
		action = "none"
	}
	class := string(o.Class)
	if class == "" {
		class = "unknown"
	}
	FragmentsTotal.WithLabelValues(class, action, status).Inc()
}
