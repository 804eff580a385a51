// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_GetClientCaches(t *testing.T) {
	pool := NewPool(time.Second, 0)
	defer pool.Close()

	cfg := &Config{
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "us-east-1",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		PathStyle:       true,
	}

	c1, err := pool.GetClient(context.Background(), cfg)
	require.NoError(t, err)
	c2, err := pool.GetClient(context.Background(), cfg)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, pool.Len())

	other := *cfg
	other.PathStyle = false
	c3, err := pool.GetClient(context.Background(), &other)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, 2, pool.Len())

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, pool.Len())
}

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0)
	defer pool.Close()

	assert.Equal(t, 5*time.Minute, pool.timeout)
	assert.Equal(t, 16, pool.maxIdle)
	assert.Equal(t, 5*time.Minute, pool.httpClient.Timeout)
}
