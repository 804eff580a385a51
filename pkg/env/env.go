// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"os"
	"strings"
)

const (
	Local      = "local"
	Production = "production"
	Testing    = "testing"
)

// Variable names checked in order. The first non-empty value wins.
var variables = []string{"S3ABUFFER_ENV", "ENV"}

// Current returns the deployment environment, Local when unset.
func Current() string {
	for _, name := range variables {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return strings.ToLower(v)
		}
	}
	return Local
}
