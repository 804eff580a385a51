// Package debug owns the process metrics registry. The tool runs once and
// exits, so metrics are exported by writing a node-exporter textfile instead
// of serving /metrics.
package debug

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Global registry for custom metrics
var globalRegistry = prometheus.NewRegistry()

func init() {
	globalRegistry.MustRegister(collectors.NewGoCollector())
}

// Registry returns the Prometheus registry for registering custom metrics.
func Registry() prometheus.Registerer {
	return globalRegistry
}

// Gatherer returns the registry for reading.
func Gatherer() prometheus.Gatherer {
	return globalRegistry
}

// WriteMetrics writes every registered metric to path in text exposition
// format. The write is atomic. An empty path is a no-op.
func WriteMetrics(path string) error {
	return writeMetrics(path, globalRegistry)
}

func writeMetrics(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
