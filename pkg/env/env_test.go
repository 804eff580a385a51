// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	t.Setenv("S3ABUFFER_ENV", "")
	t.Setenv("ENV", "")
	assert.Equal(t, Local, Current())

	t.Setenv("ENV", "Production")
	assert.Equal(t, Production, Current())

	t.Setenv("S3ABUFFER_ENV", "testing")
	assert.Equal(t, Testing, Current())
}
