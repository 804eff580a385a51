package liveness

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) *net.TCPListener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	return ln.(*net.TCPListener)
}

func TestProber_Running(t *testing.T) {
	t.Parallel()

	ln := listen(t)
	p := NewProber("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, time.Second)

	assert.True(t, p.IsServiceRunning(context.Background()))
}

func TestProber_NotRunning(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	p := NewProber("127.0.0.1", port, time.Second)
	assert.False(t, p.IsServiceRunning(context.Background()))
}

func TestProber_DialError(t *testing.T) {
	t.Parallel()

	var gotAddr string
	p := &Prober{
		Addr:    "tserver:9997",
		Timeout: time.Second,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			gotAddr = address
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			assert.Equal(t, "tcp", network)
			return nil, errors.New("connection refused")
		},
	}

	assert.False(t, p.IsServiceRunning(context.Background()))
	assert.Equal(t, "tserver:9997", gotAddr)
}

func TestNewProber_Defaults(t *testing.T) {
	t.Parallel()

	p := NewProber("", 9997, 0)
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Equal(t, net.JoinHostPort(LocalHostname(), "9997"), p.Addr)
	assert.NotNil(t, p.Dial)
}
