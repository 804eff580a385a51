// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package fragment

import (
	"fmt"
	"strings"
)

// CompactionTempSuffix marks keys written by an in-progress compaction.
const CompactionTempSuffix = ".rf_tmp"

// DefaultServicePort is the tablet server port embedded in WAL keys and probed
// by the liveness guard.
const DefaultServicePort = 9997

// Classification tags a decoded key with the remedy it needs.
type Classification string

const (
	// WriteAheadLog keys must reach the store.
	WriteAheadLog Classification = "wal"
	// CompactionTemp keys are regenerated by the compaction scheduler and may be discarded.
	CompactionTemp Classification = "compaction_tmp"
	// Unrecognized keys are never acted on.
	Unrecognized Classification = "unrecognized"
)

func (c Classification) String() string {
	return string(c)
}

// WALPrefix builds the per-host WAL prefix "<base>/<host>+<port>/" with exactly
// one separator after base.
func WALPrefix(base, host string, port int) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%s%s+%d/", base, host, port)
}

// Classify tags key. The WAL prefix check wins over the compaction suffix.
func Classify(key, walPrefix string) Classification {
	switch {
	case walPrefix != "" && strings.HasPrefix(key, walPrefix):
		return WriteAheadLog
	case strings.HasSuffix(key, CompactionTempSuffix):
		return CompactionTemp
	default:
		return Unrecognized
	}
}
