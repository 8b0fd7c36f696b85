// Package smtp drives the verification conversation against a mail
// exchanger: port probing, the EHLO/STARTTLS/MAIL FROM/RCPT TO state
// machine, catch-all detection and reply classification.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"verimail/internal/models"
	"verimail/internal/provider"
)

// Step is one state of the SMTP conversation.
type Step string

const (
	StepGreeting   Step = "GREETING"
	StepEHLO       Step = "EHLO"
	StepSTARTTLS   Step = "STARTTLS"
	StepMailFrom   Step = "MAIL_FROM"
	StepRcptProbe  Step = "RCPT_TO_PROBE"
	StepRcptTarget Step = "RCPT_TO_TARGET"
	StepVRFY       Step = "VRFY"
	StepQuit       Step = "QUIT"
)

// DefaultSteps is the standard conversation. VRFY is off by default:
// most servers disable it and a 252 is not authoritative anyway.
func DefaultSteps(enableVRFY bool) []Step {
	steps := []Step{StepGreeting, StepEHLO, StepSTARTTLS, StepMailFrom, StepRcptProbe, StepRcptTarget}
	if enableVRFY {
		steps = append(steps, StepVRFY)
	}
	return append(steps, StepQuit)
}

// Dialer opens the TCP connection. Satisfied by *net.Dialer and by the
// proxy manager's bound dial function.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// SessionConfig parameterizes a single SMTP session against one
// mxHost:port.
type SessionConfig struct {
	MXHost    string
	Port      int
	Local     string
	Domain    string
	Tag       models.ProviderTag
	FromEmail string
	HelloName string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	SessionTimeout time.Duration

	TLS        provider.TLSPolicy
	LenientTLS bool
	DisableTLS bool // set on the lenient retry after a failed handshake

	Steps  []Step
	Dialer Dialer
}

// replyError is a retryable SMTP reply (rate limiting, greylisting,
// other 4xx conditions) surfaced as an error so the runner backs off
// and retries.
type replyError struct {
	code int
	msg  string
	cls  Classification
}

func (e *replyError) Error() string {
	return "retryable reply: " + strconv.Itoa(e.code) + " " + e.msg
}

// session is the per-conversation state. One session owns exactly one
// connection; the connection is closed on every exit path.
type session struct {
	cfg        SessionConfig
	ctx        context.Context
	conn       net.Conn
	tp         *textproto.Conn
	tlsActive  bool
	tlsOffered bool
	deadline   time.Time // hard session deadline
	outcome    models.SMTPOutcome
	done       bool // a definitive outcome was reached; skip to QUIT
}

// runSession executes the configured step sequence once.
//
// Error semantics: transport failures come back as *transportError (the
// runner may advance to the next port), retryable replies as *replyError
// (the runner backs off on the same port), and nil means the outcome is
// definitive.
func runSession(ctx context.Context, cfg SessionConfig) (models.SMTPOutcome, error) {
	if !ValidPort(cfg.Port) {
		return models.SMTPOutcome{Tag: cfg.Tag}, &transportError{stageConnect, fmt.Errorf("invalid port %d", cfg.Port)}
	}
	if len(cfg.Steps) == 0 {
		cfg.Steps = DefaultSteps(false)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	addr := net.JoinHostPort(cfg.MXHost, strconv.Itoa(cfg.Port))
	conn, err := cfg.Dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return models.SMTPOutcome{Tag: cfg.Tag}, wrapCtx(ctx, &transportError{stageConnect, err})
	}
	defer conn.Close()

	s := &session{
		cfg:      cfg,
		ctx:      ctx,
		conn:     conn,
		tp:       textproto.NewConn(conn),
		deadline: sessionDeadline(ctx, cfg.SessionTimeout),
		outcome:  models.SMTPOutcome{Tag: cfg.Tag},
	}

	// Abort in-flight reads promptly on caller cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-stop:
		}
	}()

	for _, step := range cfg.Steps {
		if s.done && step != StepQuit {
			continue
		}
		var err error
		switch step {
		case StepGreeting:
			err = s.greeting()
		case StepEHLO:
			err = s.hello()
		case StepSTARTTLS:
			err = s.maybeStartTLS()
		case StepMailFrom:
			err = s.mailFrom()
		case StepRcptProbe:
			err = s.rcptProbe()
		case StepRcptTarget:
			err = s.rcptTarget()
		case StepVRFY:
			err = s.vrfy()
		case StepQuit:
			s.quit()
		}
		if err != nil {
			s.quit()
			return s.outcome, wrapCtx(ctx, err)
		}
	}

	return s.outcome, nil
}

func sessionDeadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		d = ctxDeadline
	}
	return d
}

// wrapCtx replaces a low-level I/O error with the context error when the
// caller's deadline or cancellation was the real cause.
func wrapCtx(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	stage := stageRead
	if te, ok := err.(*transportError); ok {
		stage = te.stage
	}
	return &transportError{stage, ctx.Err()}
}

// armDeadline bounds the next command round-trip.
func (s *session) armDeadline() {
	d := time.Now().Add(s.cfg.CommandTimeout)
	if d.After(s.deadline) {
		d = s.deadline
	}
	s.conn.SetDeadline(d)
}

// read consumes one full (possibly multi-line) reply.
func (s *session) read() (int, string, error) {
	s.armDeadline()
	code, msg, err := s.tp.ReadResponse(0)
	if err != nil {
		return 0, "", &transportError{stageRead, err}
	}
	return code, msg, nil
}

func (s *session) send(format string, args ...interface{}) error {
	s.armDeadline()
	if _, err := s.tp.Cmd(format, args...); err != nil {
		return &transportError{stageWrite, err}
	}
	return nil
}

// command is one strictly sequential round-trip: the reply is fully
// consumed before the next command may be issued.
func (s *session) command(format string, args ...interface{}) (int, string, error) {
	if err := s.send(format, args...); err != nil {
		return 0, "", err
	}
	return s.read()
}

func (s *session) greeting() error {
	code, msg, err := s.read()
	if err != nil {
		return err
	}
	s.outcome.CanConnect = true
	if code != 220 {
		// A 421-style busy greeting is worth a reconnect after backoff.
		return s.reject(code, msg)
	}
	return nil
}

// hello issues EHLO and falls back to HELO on a 5xx. The EHLO reply's
// continuation lines advertise the server capabilities.
func (s *session) hello() error {
	code, msg, err := s.command("EHLO %s", s.cfg.HelloName)
	if err != nil {
		return err
	}
	if code >= 500 {
		code, msg, err = s.command("HELO %s", s.cfg.HelloName)
		if err != nil {
			return err
		}
		if code/100 != 2 {
			return s.reject(code, msg)
		}
		return nil
	}
	if code/100 != 2 {
		return s.reject(code, msg)
	}
	s.parseExtensions(msg)
	return nil
}

// parseExtensions scans the EHLO continuation lines for STARTTLS and
// friends. The first line is the server identity, not a capability.
func (s *session) parseExtensions(msg string) {
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		if strings.ToUpper(fields[0]) == "STARTTLS" {
			s.tlsOffered = true
		}
	}
}

func (s *session) maybeStartTLS() error {
	if s.tlsActive || s.cfg.DisableTLS || !s.tlsOffered || s.done {
		return nil
	}

	code, msg, err := s.command("STARTTLS")
	if err != nil {
		return err
	}
	if code != 220 {
		// Server offered but refused the upgrade. Opportunistic and
		// lenient sessions stay on plaintext; strict sessions stop here.
		if s.cfg.TLS == provider.TLSOpportunistic || s.cfg.LenientTLS {
			return nil
		}
		s.outcome.RawReply = rawReply(code, msg)
		s.outcome.ErrorKind = models.ErrTLSFailure
		s.done = true
		return nil
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: true}
	// No SNI for IP-literal hosts.
	if net.ParseIP(s.cfg.MXHost) == nil {
		tlsCfg.ServerName = s.cfg.MXHost
	}

	tlsConn := tls.Client(s.conn, tlsCfg)
	tlsConn.SetDeadline(time.Now().Add(s.cfg.CommandTimeout))
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		return &transportError{stageTLS, err}
	}

	s.conn = tlsConn
	s.tp = textproto.NewConn(tlsConn)
	s.tlsActive = true

	// Capabilities must be re-learned inside the TLS channel.
	return s.hello()
}

func (s *session) mailFrom() error {
	if s.done {
		return nil
	}
	code, msg, err := s.command("MAIL FROM:<%s>", s.cfg.FromEmail)
	if err != nil {
		return err
	}
	if code/100 == 2 {
		return nil
	}
	return s.reject(code, msg)
}

// reject routes a non-2xx reply: temporary conditions surface as a
// retryable error so the runner backs off and reconnects, everything
// else settles the outcome.
func (s *session) reject(code int, msg string) error {
	cls := ClassifyReply(code, msg, s.cfg.Tag)
	if cls.Retryable() {
		return &replyError{code: code, msg: msg, cls: cls}
	}
	s.settle(code, msg)
	return nil
}

// rcptProbe sends a freshly generated random recipient. Acceptance means
// the domain takes arbitrary recipients, so a positive answer for the
// real target would prove nothing.
func (s *session) rcptProbe() error {
	if s.done {
		return nil
	}
	code, msg, err := s.command("RCPT TO:<%s@%s>", RandomLocal(), s.cfg.Domain)
	if err != nil {
		return err
	}
	if code/100 == 2 {
		s.outcome.IsCatchAll = true
		s.outcome.IsDeliverable = true
		s.outcome.RawReply = rawReply(code, msg)
		s.outcome.ErrorKind = models.ErrCatchAll
		s.done = true
		return nil
	}
	// 5xx: no catch-all, the target probe decides. 4xx: inconclusive,
	// still worth probing the target on this session.
	return nil
}

func (s *session) rcptTarget() error {
	if s.done {
		return nil
	}
	code, msg, err := s.command("RCPT TO:<%s@%s>", s.cfg.Local, s.cfg.Domain)
	if err != nil {
		return err
	}
	if code/100 == 2 {
		s.outcome.IsDeliverable = true
		s.outcome.RawReply = rawReply(code, msg)
		return nil
	}
	cls := ClassifyReply(code, msg, s.cfg.Tag)
	if cls.Category == CategoryRateLimited || cls.Category == CategoryTransient {
		return &replyError{code: code, msg: msg, cls: cls}
	}
	s.settle(code, msg)
	return nil
}

// vrfy is opt-in confirmation only. 252 and 502 mean the server refuses
// to answer, which proves nothing either way.
func (s *session) vrfy() error {
	if s.done || s.outcome.IsDeliverable {
		return nil
	}
	code, _, err := s.command("VRFY <%s@%s>", s.cfg.Local, s.cfg.Domain)
	if err != nil {
		return err
	}
	if code == 250 || code == 251 {
		s.outcome.IsDeliverable = true
	}
	return nil
}

// quit is best-effort; the server closing first is normal.
func (s *session) quit() {
	s.armDeadline()
	s.tp.Cmd("QUIT")
}

// settle records a definitive negative reply on the outcome and marks
// the session finished.
func (s *session) settle(code int, msg string) {
	cls := ClassifyReply(code, msg, s.cfg.Tag)
	s.outcome.RawReply = rawReply(code, msg)
	s.outcome.ErrorKind = cls.Kind
	s.outcome.Note = cls.Note
	switch cls.Category {
	case CategoryDisabled:
		s.outcome.IsDisabled = true
	case CategoryFullInbox:
		s.outcome.HasFullInbox = true
	}
	s.done = true
}

func rawReply(code int, msg string) string {
	return strconv.Itoa(code) + " " + msg
}
