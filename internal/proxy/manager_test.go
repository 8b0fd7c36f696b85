package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New([]string{"socks5://good.example:1080", "://bad"}, 0)
	assert.Error(t, err)
}

func TestNewSkipsEmptyEntries(t *testing.T) {
	m, err := New([]string{"", "socks5://p1.example:1080", ""}, 0)
	require.NoError(t, err)
	assert.True(t, m.Enabled())
}

func TestEnabled(t *testing.T) {
	m, err := New(nil, 0)
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	var nilManager *Manager
	assert.False(t, nilManager.Enabled())
}

func TestNextRoundRobin(t *testing.T) {
	m, err := New([]string{"socks5://p1.example:1080", "socks5://p2.example:1080"}, 0)
	require.NoError(t, err)

	assert.Equal(t, "p1.example:1080", m.Next().Host)
	assert.Equal(t, "p2.example:1080", m.Next().Host)
	assert.Equal(t, "p1.example:1080", m.Next().Host)
}

func TestNextNoProxies(t *testing.T) {
	m, err := New(nil, 0)
	require.NoError(t, err)
	assert.Nil(t, m.Next())
}

// Without proxies the bound dialer degrades to a direct connection.
func TestBoundDialerDirect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if conn, err := ln.Accept(); err == nil {
			conn.Close()
		}
	}()

	m, err := New(nil, 0)
	require.NoError(t, err)

	conn, err := m.Bind(time.Second).DialContext(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}
