package smtp

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"verimail/internal/cache"
	"verimail/internal/models"
	"verimail/internal/provider"
)

// Default timeouts for knobs the tuning table doesn't carry.
const (
	DefaultCommandTimeout = 10 * time.Second
	DefaultSessionTimeout = 45 * time.Second
	retryBackoffBase      = 1 * time.Second
)

// Options parameterize one full SMTP verification of local@domain
// against mxHost, including port probing and retries.
type Options struct {
	MXHost    string
	Local     string
	Domain    string
	Tag       models.ProviderTag
	FromEmail string
	HelloName string

	// Zero values fall back to the provider tuning for Tag.
	Ports          []int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	SessionTimeout time.Duration
	Retries        int

	TLS        provider.TLSPolicy
	TLSKnown   bool // distinguishes an explicit TLS policy from the zero value
	LenientTLS bool
	EnableVRFY bool
	Steps      []Step

	Dialer Dialer
	Cache  *cache.Cache
	Debug  bool
}

// Verify runs the SMTP conversation with provider-tuned port probing and
// exponential-backoff retries, fronted by the smtp result cache.
//
// 5xx protocol rejections are terminal per attempt; transport failures
// advance to the next candidate port; 4xx-class replies back off and
// retry the same port.
func Verify(ctx context.Context, opts Options) models.SMTPOutcome {
	tuning := provider.TuningFor(opts.Tag)
	if len(opts.Ports) == 0 {
		opts.Ports = tuning.Ports
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = tuning.ConnectTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = DefaultSessionTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = tuning.Retries
	}
	if !opts.TLSKnown {
		opts.TLS = tuning.TLS
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}

	mxHost := strings.TrimSuffix(strings.ToLower(opts.MXHost), ".")
	cacheKey := opts.Domain + "|" + mxHost + "|" + opts.Local

	var cached models.SMTPOutcome
	if opts.Cache.GetJSON(ctx, cache.NSSMTP, cacheKey, &cached) {
		return cached
	}

	prober := NewProber(opts.Cache)
	ports := prober.Candidates(ctx, mxHost, opts.Ports)
	if len(ports) == 0 {
		return models.SMTPOutcome{Tag: opts.Tag, ProviderUsed: "smtp", ErrorKind: models.ErrConnectRefused}
	}

	var lastErr error
	var lastOutcome models.SMTPOutcome

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		outcome, err := verifyOnce(ctx, opts, prober, mxHost, cacheKey, ports)
		if err == nil {
			return outcome
		}
		lastErr, lastOutcome = err, outcome

		if ctx.Err() != nil {
			break
		}
		if attempt < opts.Retries {
			wait := retryBackoffBase << attempt
			if opts.Debug {
				log.Printf("[DEBUG] smtp: attempt %d against %s failed (%v), backing off %v", attempt+1, mxHost, err, wait)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				attempt = opts.Retries
			}
		}
	}

	return finalize(lastOutcome, lastErr, opts.Tag)
}

// verifyOnce walks the candidate ports once.
func verifyOnce(ctx context.Context, opts Options, prober *Prober, mxHost, cacheKey string, ports []int) (models.SMTPOutcome, error) {
	var lastErr error
	var lastOutcome models.SMTPOutcome

	for _, port := range ports {
		cfg := SessionConfig{
			MXHost:         mxHost,
			Port:           port,
			Local:          opts.Local,
			Domain:         opts.Domain,
			Tag:            opts.Tag,
			FromEmail:      opts.FromEmail,
			HelloName:      opts.HelloName,
			ConnectTimeout: opts.ConnectTimeout,
			CommandTimeout: opts.CommandTimeout,
			SessionTimeout: opts.SessionTimeout,
			TLS:            opts.TLS,
			LenientTLS:     opts.LenientTLS,
			Steps:          sessionSteps(opts),
			Dialer:         opts.Dialer,
		}

		outcome, err := runSession(ctx, cfg)

		// A failed TLS handshake on a lenient session gets one immediate
		// plaintext replay on the same port.
		var te *transportError
		if errors.As(err, &te) && te.stage == stageTLS && opts.LenientTLS {
			cfg.DisableTLS = true
			outcome, err = runSession(ctx, cfg)
		}

		if err == nil {
			prober.Remember(ctx, mxHost, port)
			outcome.ProviderUsed = "smtp"
			if cacheable(outcome) {
				opts.Cache.SetJSON(ctx, cache.NSSMTP, cacheKey, outcome, 0)
			}
			return outcome, nil
		}

		var re *replyError
		if errors.As(err, &re) {
			// The port works; the server wants us to slow down.
			prober.Remember(ctx, mxHost, port)
			return outcome, err
		}

		lastErr, lastOutcome = err, outcome
		if ctx.Err() != nil {
			break
		}
	}

	return lastOutcome, lastErr
}

func sessionSteps(opts Options) []Step {
	if len(opts.Steps) > 0 {
		return opts.Steps
	}
	return DefaultSteps(opts.EnableVRFY)
}

// cacheable excludes transport-class and throttling outcomes: a later
// call should re-probe those instead of trusting a stale failure.
func cacheable(outcome models.SMTPOutcome) bool {
	switch outcome.ErrorKind {
	case models.ErrConnectTimeout, models.ErrConnectRefused, models.ErrConnectReset,
		models.ErrTLSFailure, models.ErrReadTimeout, models.ErrWriteFailure,
		models.ErrCancelled, models.ErrRateLimited:
		return false
	}
	return outcome.CanConnect
}

// finalize converts the last failure into the returned outcome.
func finalize(outcome models.SMTPOutcome, err error, tag models.ProviderTag) models.SMTPOutcome {
	outcome.Tag = tag
	outcome.ProviderUsed = "smtp"
	if err == nil {
		return outcome
	}

	var re *replyError
	if errors.As(err, &re) {
		outcome.RawReply = rawReply(re.code, re.msg)
		outcome.ErrorKind = re.cls.Kind
		outcome.Note = re.cls.Note
		return outcome
	}

	cls := ClassifyTransport(err)
	outcome.ErrorKind = cls.Kind
	if outcome.RawReply == "" {
		outcome.RawReply = err.Error()
	}
	return outcome
}
