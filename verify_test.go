package verimail

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/foxcpp/go-mockdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(ctx context.Context, domain string) ([]*net.MX, error)

func (f resolverFunc) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return f(ctx, domain)
}

func TestVerifyRequiresEmail(t *testing.T) {
	_, err := New().Verify(context.Background(), Params{})
	assert.ErrorIs(t, err, ErrNoEmailAddress)
}

func TestVerifySyntaxOnly(t *testing.T) {
	calls := 0
	v := New().WithResolver(resolverFunc(func(ctx context.Context, domain string) ([]*net.MX, error) {
		calls++
		return nil, nil
	}))

	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "user@gmail.com",
		VerifyMX:     Bool(false),
	})
	require.NoError(t, err)

	assert.True(t, result.Syntax.OK)
	assert.Equal(t, "user", result.Address.Local)
	assert.Equal(t, "gmail.com", result.Address.Domain)
	assert.Equal(t, ProviderGmail, result.Misc.ProviderTag, "domain fallback classifies without MX")
	assert.Equal(t, ReachabilityUnknown, result.Reachability)
	assert.Nil(t, result.MX)
	assert.Nil(t, result.SMTP)
	assert.Equal(t, 0, calls, "no DNS I/O when MX verification is off")
}

func TestVerifyNormalizes(t *testing.T) {
	v := New()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "UPPER@Example.COM",
		VerifyMX:     Bool(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "upper@example.com", result.Address.Normalized)
	assert.Equal(t, "upper", result.Address.Local)
	assert.Equal(t, "example.com", result.Address.Domain)
}

func TestVerifyLocalTooLong(t *testing.T) {
	calls := 0
	v := New().WithResolver(resolverFunc(func(ctx context.Context, domain string) ([]*net.MX, error) {
		calls++
		return nil, nil
	}))

	result, err := v.Verify(context.Background(), Params{
		EmailAddress: strings.Repeat("a", 65) + "@x.com",
	})
	require.NoError(t, err)

	assert.False(t, result.Syntax.OK)
	assert.Equal(t, ErrLocalTooLong, result.ErrorKind)
	assert.Equal(t, ReachabilityInvalid, result.Reachability)
	assert.Equal(t, 0, calls, "invalid syntax short-circuits before any I/O")
}

func TestVerifyMXNotFound(t *testing.T) {
	v := New().WithResolver(&mockdns.Resolver{Zones: map[string]mockdns.Zone{}})

	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "test@nonexistent-xyzzy-12345.example",
	})
	require.NoError(t, err)

	require.NotNil(t, result.MX)
	assert.False(t, result.MX.Success)
	assert.Equal(t, ErrMxNotFound, result.ErrorKind)
	assert.Equal(t, ReachabilityInvalid, result.Reachability)
}

func TestVerifyMXTimeout(t *testing.T) {
	v := New().WithResolver(resolverFunc(func(ctx context.Context, domain string) ([]*net.MX, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "test@slow.example",
		Timeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NotNil(t, result.MX)
	assert.Equal(t, ErrMxTimeout, result.MX.ErrorKind)
	assert.Equal(t, ReachabilityUnknown, result.Reachability)
}

func TestVerifyDisposableIsRisky(t *testing.T) {
	v := New()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "someone@mailinator.com",
		VerifyMX:     Bool(false),
	})
	require.NoError(t, err)
	assert.True(t, result.Misc.IsDisposable)
	assert.Equal(t, ReachabilityRisky, result.Reachability)
}

func TestVerifyMiscFlags(t *testing.T) {
	v := New()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "admin@gmail.com",
		VerifyMX:     Bool(false),
	})
	require.NoError(t, err)
	assert.True(t, result.Misc.IsFree)
	assert.True(t, result.Misc.IsRoleAccount)
	assert.False(t, result.Misc.IsDisposable)
}

func TestVerifyChecksCanBeDisabled(t *testing.T) {
	v := New()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress:    "someone@mailinator.com",
		VerifyMX:        Bool(false),
		CheckDisposable: Bool(false),
		CheckFree:       Bool(false),
	})
	require.NoError(t, err)
	assert.False(t, result.Misc.IsDisposable)
	assert.Equal(t, ReachabilityUnknown, result.Reachability)
}

func TestVerifySuggestsTypoDomain(t *testing.T) {
	v := New()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress:  "someone@gamil.com",
		VerifyMX:      Bool(false),
		SuggestDomain: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "gmail.com", result.Misc.SuggestedDomain)
}

// catchAllStub accepts every recipient, which is exactly what a catch-all
// domain looks like from outside.
func catchAllStub(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				w := bufio.NewWriter(conn)
				write := func(s string) {
					w.WriteString(s + "\r\n")
					w.Flush()
				}
				write("220 mx.catchall.example ESMTP")
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					cmd := strings.ToUpper(strings.TrimSpace(line))
					switch {
					case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
						write("250-mx.catchall.example")
						write("250 SIZE 10240000")
					case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
						write("250 2.1.5 ok")
					case strings.HasPrefix(cmd, "QUIT"):
						write("221 bye")
						return
					default:
						write("502 command not implemented")
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestVerifyCatchAllIsSafe(t *testing.T) {
	host, port := catchAllStub(t)

	v := New().WithResolver(resolverFunc(func(ctx context.Context, domain string) ([]*net.MX, error) {
		return []*net.MX{{Host: host + ".", Pref: 10}}, nil
	}))

	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "someone@catchall.example",
		VerifySMTP:   true,
		Timeout:      10 * time.Second,
		SMTP:         SMTPParams{Ports: []int{port}, Retries: 1},
	})
	require.NoError(t, err)

	require.NotNil(t, result.SMTP)
	assert.True(t, result.SMTP.IsCatchAll)
	assert.True(t, result.SMTP.IsDeliverable)
	assert.Equal(t, ReachabilitySafe, result.Reachability)
}

func TestVerifyTerminatesWithinTimeout(t *testing.T) {
	v := New().WithResolver(resolverFunc(func(ctx context.Context, domain string) ([]*net.MX, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	start := time.Now()
	result, err := v.Verify(context.Background(), Params{
		EmailAddress: "someone@hang.example",
		Timeout:      100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, ReachabilityUnknown, result.Reachability)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestPackageLevelVerify(t *testing.T) {
	result, err := Verify(context.Background(), Params{
		EmailAddress: "user@gmail.com",
		VerifyMX:     Bool(false),
	})
	require.NoError(t, err)
	assert.True(t, result.Syntax.OK)
}
