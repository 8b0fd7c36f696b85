package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimail/internal/cache"
	"verimail/internal/models"
)

// stubSMTP is a minimal local mail exchanger. rcpt decides the reply for
// each RCPT TO recipient; everything else follows the happy path unless
// one of the override fields steers it off.
type stubSMTP struct {
	ln         net.Listener
	rcpt       func(to string) string
	tls        bool                     // advertise STARTTLS (and refuse the upgrade)
	tlsGarbage bool                     // accept STARTTLS, then wreck the handshake
	greeting   string                   // non-default banner
	ehloReply  string                   // non-default EHLO reply
	vrfy       func(line string) string // VRFY handler; nil answers 502
	conns      atomic.Int32
}

func newStubSMTP(t *testing.T, rcpt func(to string) string) *stubSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubSMTP{ln: ln, rcpt: rcpt}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *stubSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *stubSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubSMTP) handle(conn net.Conn) {
	defer conn.Close()
	s.conns.Add(1)
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	write := func(line string) {
		w.WriteString(line + "\r\n")
		w.Flush()
	}

	if s.greeting != "" {
		write(s.greeting)
	} else {
		write("220 mx.test.example ESMTP ready")
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			switch {
			case s.ehloReply != "":
				write(s.ehloReply)
			case s.tls:
				write("250-mx.test.example")
				write("250-STARTTLS")
				write("250 SIZE 10240000")
			default:
				write("250-mx.test.example")
				write("250 SIZE 10240000")
			}
		case strings.HasPrefix(cmd, "STARTTLS"):
			if s.tlsGarbage {
				write("220 2.0.0 ready for tls")
				write("this is not a tls record")
				return
			}
			write("454 4.7.0 TLS not available due to temporary reason")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			write("250 2.1.0 sender ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			write(s.rcpt(recipient(line)))
		case strings.HasPrefix(cmd, "VRFY"):
			if s.vrfy != nil {
				write(s.vrfy(strings.TrimSpace(line)))
			} else {
				write("502 5.5.1 vrfy disabled")
			}
		case strings.HasPrefix(cmd, "QUIT"):
			write("221 2.0.0 bye")
			return
		default:
			write("502 5.5.2 command not implemented")
		}
	}
}

func recipient(line string) string {
	open := strings.IndexByte(line, '<')
	end := strings.IndexByte(line, '>')
	if open < 0 || end <= open {
		return ""
	}
	return line[open+1 : end]
}

func testOptions(srv *stubSMTP, c *cache.Cache) Options {
	return Options{
		MXHost:         "127.0.0.1",
		Local:          "target",
		Domain:         "test.example",
		Tag:            models.ProviderEverythingElse,
		FromEmail:      "probe@example.com",
		HelloName:      "example.com",
		Ports:          []int{srv.port()},
		ConnectTimeout: 2 * time.Second,
		CommandTimeout: 2 * time.Second,
		SessionTimeout: 10 * time.Second,
		Retries:        1,
		Cache:          c,
	}
}

func TestVerifyDeliverable(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 2.1.5 recipient ok"
		}
		return "550 5.1.1 no such user"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.CanConnect)
	assert.True(t, outcome.IsDeliverable)
	assert.False(t, outcome.IsCatchAll)
	assert.Equal(t, "smtp", outcome.ProviderUsed)
	assert.Empty(t, outcome.ErrorKind)
}

func TestVerifyCatchAll(t *testing.T) {
	srv := newStubSMTP(t, func(string) string {
		return "250 2.1.5 anything goes"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.CanConnect)
	assert.True(t, outcome.IsCatchAll)
	assert.True(t, outcome.IsDeliverable, "catch-all implies deliverable")
	assert.Equal(t, models.ErrCatchAll, outcome.ErrorKind)
}

func TestVerifyInvalidRecipient(t *testing.T) {
	srv := newStubSMTP(t, func(string) string {
		return "550 5.1.1 no such user"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.CanConnect)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrInvalid, outcome.ErrorKind)
}

func TestVerifyDisabledMailbox(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if strings.HasPrefix(to, "target@") {
			return "554 5.2.1 account disabled"
		}
		return "550 5.1.1 no such user"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.IsDisabled)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrDisabled, outcome.ErrorKind)
}

func TestVerifyFullInbox(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if strings.HasPrefix(to, "target@") {
			return "552 5.2.2 mailbox full"
		}
		return "550 5.1.1 no such user"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.HasFullInbox)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrFullInbox, outcome.ErrorKind)
}

// STARTTLS offered but refused: an opportunistic session carries on in
// plaintext instead of failing.
func TestVerifyOpportunisticTLSRefusal(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 2.1.5 recipient ok"
		}
		return "550 5.1.1 no such user"
	})
	srv.tls = true

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.IsDeliverable)
}

func TestVerifyRemembersWinningPort(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemory(0))
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 ok"
		}
		return "550 no such user"
	})

	Verify(ctx, testOptions(srv, c))

	var port int
	require.True(t, c.GetJSON(ctx, cache.NSSMTPPort, "127.0.0.1", &port))
	assert.Equal(t, srv.port(), port)
}

func TestVerifyOutcomeCached(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemory(0))
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 ok"
		}
		return "550 no such user"
	})

	opts := testOptions(srv, c)
	first := Verify(ctx, opts)
	require.True(t, first.IsDeliverable)

	// Kill the server: a second verification can only succeed from cache.
	srv.ln.Close()

	second := Verify(ctx, opts)
	assert.True(t, second.IsDeliverable)
	assert.Equal(t, "smtp", second.ProviderUsed)
}

func TestVerifyAdvancesPastDeadPort(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 ok"
		}
		return "550 no such user"
	})

	// Find a port that refuses connections.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := dead.Addr().(*net.TCPAddr).Port
	dead.Close()

	opts := testOptions(srv, nil)
	opts.Ports = []int{deadPort, srv.port()}

	outcome := Verify(context.Background(), opts)
	assert.True(t, outcome.IsDeliverable)
}

func TestVerifyConnectFailure(t *testing.T) {
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := dead.Addr().(*net.TCPAddr).Port
	dead.Close()

	opts := Options{
		MXHost:         "127.0.0.1",
		Local:          "target",
		Domain:         "test.example",
		Tag:            models.ProviderEverythingElse,
		FromEmail:      "probe@example.com",
		HelloName:      "example.com",
		Ports:          []int{deadPort},
		ConnectTimeout: 1 * time.Second,
		Retries:        1,
	}

	outcome := Verify(context.Background(), opts)
	assert.False(t, outcome.CanConnect)
	assert.Equal(t, models.ErrConnectRefused, outcome.ErrorKind)
}

func TestVerifyGreylisted(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if strings.HasPrefix(to, "target@") {
			return "450 4.2.0 greylisted, try again later"
		}
		return "550 5.1.1 no such user"
	})

	outcome := Verify(context.Background(), testOptions(srv, nil))
	assert.True(t, outcome.CanConnect)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrRateLimited, outcome.ErrorKind)
}

// A busy-server greeting is a temporary condition: the runner must back
// off and reconnect, not take the 421 as the answer.
func TestVerifyRetriesBusyGreeting(t *testing.T) {
	srv := newStubSMTP(t, func(string) string { return "250 ok" })
	srv.greeting = "421 4.3.2 service busy"

	opts := testOptions(srv, nil)
	opts.Retries = 1

	outcome := Verify(context.Background(), opts)
	assert.True(t, outcome.CanConnect)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrRateLimited, outcome.ErrorKind)
	assert.Equal(t, int32(2), srv.conns.Load(), "each attempt reconnects")
}

func TestVerifyRetriesTemporaryEHLORejection(t *testing.T) {
	srv := newStubSMTP(t, func(string) string { return "250 ok" })
	srv.ehloReply = "450 4.7.1 try again later"

	opts := testOptions(srv, nil)
	opts.Retries = 1

	outcome := Verify(context.Background(), opts)
	assert.True(t, outcome.CanConnect)
	assert.Equal(t, models.ErrRateLimited, outcome.ErrorKind)
	assert.Equal(t, int32(2), srv.conns.Load())
}

// The server accepts STARTTLS and then speaks garbage. A lenient session
// replays the conversation in plaintext on a fresh connection.
func TestVerifyLenientTLSFallsBackToPlaintext(t *testing.T) {
	srv := newStubSMTP(t, func(to string) string {
		if to == "target@test.example" {
			return "250 2.1.5 recipient ok"
		}
		return "550 5.1.1 no such user"
	})
	srv.tls = true
	srv.tlsGarbage = true

	opts := testOptions(srv, nil)
	opts.LenientTLS = true

	outcome := Verify(context.Background(), opts)
	assert.True(t, outcome.IsDeliverable)
	assert.Empty(t, outcome.ErrorKind)
	assert.GreaterOrEqual(t, srv.conns.Load(), int32(2), "the plaintext replay opens a second connection")
}

func TestVerifyTLSHandshakeFailureWithoutLenient(t *testing.T) {
	srv := newStubSMTP(t, func(string) string { return "250 ok" })
	srv.tls = true
	srv.tlsGarbage = true

	opts := testOptions(srv, nil)

	outcome := Verify(context.Background(), opts)
	assert.False(t, outcome.IsDeliverable)
	assert.Equal(t, models.ErrTLSFailure, outcome.ErrorKind)
}

func TestVerifyVRFYRecipientForm(t *testing.T) {
	lines := make(chan string, 1)
	srv := newStubSMTP(t, func(string) string { return "550 no such user" })
	srv.vrfy = func(line string) string {
		select {
		case lines <- line:
		default:
		}
		return "250 target@test.example"
	}

	opts := testOptions(srv, nil)
	opts.Steps = []Step{StepGreeting, StepEHLO, StepMailFrom, StepVRFY, StepQuit}

	outcome := Verify(context.Background(), opts)
	assert.True(t, outcome.IsDeliverable)
	select {
	case line := <-lines:
		assert.Equal(t, "VRFY <target@test.example>", line)
	default:
		t.Fatal("VRFY was never issued")
	}
}

func TestVerifyCancellation(t *testing.T) {
	srv := newStubSMTP(t, func(string) string {
		time.Sleep(5 * time.Second)
		return "250 ok"
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome := Verify(ctx, testOptions(srv, nil))
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, outcome.IsDeliverable)
}

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps(false)
	assert.Equal(t, []Step{StepGreeting, StepEHLO, StepSTARTTLS, StepMailFrom, StepRcptProbe, StepRcptTarget, StepQuit}, steps)

	withVrfy := DefaultSteps(true)
	assert.Contains(t, withVrfy, StepVRFY)
	assert.Equal(t, StepQuit, withVrfy[len(withVrfy)-1])
}
