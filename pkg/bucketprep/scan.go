// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package bucketprep checks a bucket for an existing Accumulo deployment
// before init, and optionally wipes it.
package bucketprep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/debug"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/objstore"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// DefaultCountFile is where the init container expects the object count.
const DefaultCountFile = "/tmp/accumulo_bucket_objects"

// DefaultPrefixes are the Accumulo volume and WAL prefixes.
var DefaultPrefixes = []string{"accumulo/", "accumulo-wal/"}

var prepObjectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "s3abuffer",
	Name:      "prep_objects_total",
	Help:      "Objects found or deleted while preparing a bucket",
}, []string{"prefix", "action"}) // action: "counted", "deleted"

func init() {
	debug.Registry().MustRegister(prepObjectsTotal)
}

// Config controls a scan.
type Config struct {
	Bucket   string
	Prefixes []string

	// ForceDelete removes every object found instead of counting it.
	ForceDelete bool

	// DeleteRate caps deletes per second. Zero means unlimited.
	DeleteRate float64
}

// ScanResult accumulates what a scan found.
type ScanResult struct {
	// Existing counts objects left in place, per prefix.
	Existing map[string]int
	// Deleted counts removed objects, per prefix.
	Deleted map[string]int
}

func newScanResult() ScanResult {
	return ScanResult{Existing: make(map[string]int), Deleted: make(map[string]int)}
}

// Count is the number of objects left in place.
func (r ScanResult) Count() int {
	n := 0
	for _, c := range r.Existing {
		n += c
	}
	return n
}

// DeletedCount is the number of removed objects.
func (r ScanResult) DeletedCount() int {
	n := 0
	for _, c := range r.Deleted {
		n += c
	}
	return n
}

// Scan walks every prefix of cfg. Without ForceDelete it only counts. The
// partial result is returned with any error.
func Scan(ctx context.Context, store objstore.ObjectLister, cfg Config) (ScanResult, error) {
	result := newScanResult()
	if cfg.Bucket == "" {
		return result, errors.New("bucket is required")
	}

	prefixes := cfg.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}

	var limiter *rate.Limiter
	if cfg.ForceDelete && cfg.DeleteRate > 0 {
		burst := int(cfg.DeleteRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.DeleteRate), burst)
	}

	log := logger.Ctx(ctx)
	for _, prefix := range prefixes {
		err := store.ListObjects(ctx, cfg.Bucket, prefix, func(key string) error {
			if !cfg.ForceDelete {
				log.Warn().Str("key", key).Msg("existing Accumulo deployment object found")
				result.Existing[prefix]++
				prepObjectsTotal.WithLabelValues(prefix, "counted").Inc()
				return nil
			}

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			log.Warn().Str("key", key).Msg("deleting previous Accumulo database object")
			if err := store.DeleteObject(ctx, cfg.Bucket, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			result.Deleted[prefix]++
			prepObjectsTotal.WithLabelValues(prefix, "deleted").Inc()
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}

	return result, nil
}

// RemoveCountFile deletes a count file left by an earlier run.
func RemoveCountFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove count file: %w", err)
	}
	return nil
}

// WriteCount stores the number of objects left in place at path as a
// decimal integer.
func WriteCount(path string, result ScanResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create count file dir: %w", err)
	}
	count := result.Count()
	if err := os.WriteFile(path, []byte(strconv.Itoa(count)), 0o644); err != nil {
		return fmt.Errorf("write count file: %w", err)
	}
	logger.Info().Int("count", count).Str("path", path).Msg("saved object count")
	return nil
}
