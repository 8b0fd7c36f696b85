package proxy

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	netproxy "golang.org/x/net/proxy"
)

// BoundDialer is a Manager with a fixed dial timeout, in the three-argument
// shape the SMTP session's Dialer interface expects.
type BoundDialer struct {
	m       *Manager
	timeout time.Duration
}

// Bind fixes the dial timeout for use as a session dialer.
func (m *Manager) Bind(timeout time.Duration) BoundDialer {
	return BoundDialer{m: m, timeout: timeout}
}

func (b BoundDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return b.m.DialContext(ctx, network, addr, b.timeout)
}

// proxyConn wraps net.Conn so the concurrency token is released exactly
// once when the SMTP session closes the connection.
type proxyConn struct {
	net.Conn
	releaseOnce sync.Once
	sem         chan struct{}
}

func (pc *proxyConn) Close() error {
	pc.releaseOnce.Do(func() { <-pc.sem })
	return pc.Conn.Close()
}

// DialContext dials addr through the next proxy in rotation, or directly
// when no proxies are configured. Hostname targets are resolved locally
// first so the proxy only ever sees an IP (some SOCKS servers have broken
// remote DNS).
func (m *Manager) DialContext(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	directDialer := &net.Dialer{Timeout: timeout}

	pURL := m.Next()
	if pURL == nil {
		return directDialer.DialContext(ctx, network, addr)
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout waiting for proxy slot: %w", ctx.Err())
	}

	if host, port, err := net.SplitHostPort(addr); err == nil && net.ParseIP(host) == nil {
		if ips, lookupErr := net.LookupIP(host); lookupErr == nil && len(ips) > 0 {
			resolved := ips[0].String()
			for _, ip := range ips {
				if ip.To4() != nil {
					resolved = ip.String()
					break
				}
			}
			addr = net.JoinHostPort(resolved, port)
		}
	}

	pdialer, err := netproxy.FromURL(pURL, directDialer)
	if err != nil {
		<-m.sem
		return nil, fmt.Errorf("unusable proxy %s: %w", pURL.Host, err)
	}

	start := time.Now()
	var conn net.Conn
	if cdialer, ok := pdialer.(netproxy.ContextDialer); ok {
		conn, err = cdialer.DialContext(ctx, network, addr)
	} else {
		conn, err = pdialer.Dial(network, addr)
	}
	if err != nil {
		<-m.sem
		log.Printf("[DEBUG] proxy: dial %s via %s failed after %v: %v", addr, pURL.Host, time.Since(start), err)
		return nil, err
	}

	return &proxyConn{Conn: conn, sem: m.sem}, nil
}
