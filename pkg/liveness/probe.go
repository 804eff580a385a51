// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveness detects whether the service that owns the buffer directory
// is accepting connections. Recovery must not run while it is.
//
// The probe is a plain TCP connect. A service that starts after the probe is
// not detected; deployments run recovery as an init step before the service
// container starts.
package liveness

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"
)

// DefaultTimeout bounds a single connect attempt.
const DefaultTimeout = 2 * time.Second

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober probes a single TCP address.
type Prober struct {
	Addr    string
	Timeout time.Duration
	Dial    DialFunc
}

// NewProber returns a prober for host:port. An empty host means the local hostname.
func NewProber(host string, port int, timeout time.Duration) *Prober {
	if host == "" {
		host = LocalHostname()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &net.Dialer{}
	return &Prober{
		Addr:    utils.JoinHostPort(host, port),
		Timeout: timeout,
		Dial:    d.DialContext,
	}
}

// IsServiceRunning reports whether something accepts connections on Addr.
// Any dial failure counts as not running.
func (p *Prober) IsServiceRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.Dial(ctx, "tcp", p.Addr)
	if err != nil {
		logger.Ctx(ctx).Info().Str("addr", p.Addr).Err(err).Msg("service is not listening")
		return false
	}
	_ = conn.Close()

	logger.Ctx(ctx).Warn().Str("addr", p.Addr).Msg("service is accepting connections")
	return true
}

// LocalHostname returns the host name used in WAL prefixes and the probe
// address, falling back to "localhost".
func LocalHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}
