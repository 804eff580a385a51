package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		tls      bool
		want     string
	}{
		{endpoint: "minio:9000", tls: false, want: "http://minio:9000"},
		{endpoint: "minio:9000", tls: true, want: "https://minio:9000"},
		{endpoint: "http://minio:9000", tls: true, want: "http://minio:9000"},
		{endpoint: "HTTPS://s3.amazonaws.com", tls: false, want: "HTTPS://s3.amazonaws.com"},
		{endpoint: "", tls: true, want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EnsureScheme(tt.endpoint, tt.tls), tt.endpoint)
	}
}

func TestJoinHostPort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "host:9997", JoinHostPort("host", 9997))
	assert.Equal(t, "[::1]:9997", JoinHostPort("::1", 9997))
	assert.Equal(t, "[::1]:9997", JoinHostPort("[::1]", 9997))
}

func TestCheckDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, CheckDirectory(dir))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err := CheckDirectory(file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrInvalid))

	err = CheckDirectory(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolvePath(t *testing.T) {
	t.Setenv("S3ABUFFER_TEST_DIR", "/var/tmp")

	assert.Equal(t, "", ResolvePath(""))
	assert.Equal(t, "/var/tmp/hadoop", ResolvePath("$S3ABUFFER_TEST_DIR/hadoop"))
	assert.True(t, filepath.IsAbs(ResolvePath("relative/dir")))
}

func TestLoadClientTLSConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadClientTLSConfig("", false)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = LoadClientTLSConfig("", true)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.InsecureSkipVerify)

	_, err = LoadClientTLSConfig(filepath.Join(t.TempDir(), "missing.pem"), false)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o644))
	_, err = LoadClientTLSConfig(bad, false)
	assert.Error(t, err)
}
