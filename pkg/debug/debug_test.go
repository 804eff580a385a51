package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "s3abuffer_test_total",
		Help: "test counter",
	})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "nested", "s3abuffer.prom")
	require.NoError(t, writeMetrics(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "s3abuffer_test_total 3")
}

func TestWriteMetrics_EmptyPath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WriteMetrics(""))
}
