package verimail

import (
	"context"
	"errors"
	"sync"
	"time"

	"verimail/internal/lookup"
	"verimail/internal/models"
	"verimail/internal/provider"
	"verimail/internal/sidechannel"
	"verimail/internal/smtp"
	"verimail/internal/suggest"
	"verimail/internal/syntax"
)

// ErrNoEmailAddress is the only error Verify returns: a missing required
// option is a programmer error, everything else lands in the result.
var ErrNoEmailAddress = errors.New("verimail: EmailAddress is required")

var defaultVerifier = New()

// Verify runs a verification against a process-wide default Verifier.
func Verify(ctx context.Context, p Params) (VerificationResult, error) {
	return defaultVerifier.Verify(ctx, p)
}

// Verify runs the verification pipeline for one address: syntax, then
// dataset classification in parallel with MX resolution, then provider
// classification, then either a provider side-channel or the SMTP
// conversation, and finally the reachability verdict.
//
// Verify always returns a usable result; failures along the way surface
// in Reachability and ErrorKind, never as a returned error.
func (v *Verifier) Verify(ctx context.Context, p Params) (VerificationResult, error) {
	if p.EmailAddress == "" {
		return VerificationResult{}, ErrNoEmailAddress
	}

	start := time.Now()
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := models.VerificationResult{
		Email:        p.EmailAddress,
		Reachability: models.ReachabilityUnknown,
	}

	addr, syn := syntax.Validate(p.EmailAddress)
	result.Address = addr
	result.Syntax = syn
	if !syn.OK {
		result.Reachability = models.ReachabilityInvalid
		result.ErrorKind = syn.ErrorKind
		result.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	verifyMX := boolOpt(p.VerifyMX, true)

	// Dataset lookups and MX resolution run concurrently; each goroutine
	// writes a distinct field, the join is the only synchronization.
	misc := models.MiscFacts{IsRoleAccount: lookup.IsRoleAccount(addr.Local)}
	var mx models.MXLookup
	var wg sync.WaitGroup

	if boolOpt(p.CheckDisposable, true) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			misc.IsDisposable = v.classifier.IsDisposable(ctx, addr.Domain)
		}()
	}
	if boolOpt(p.CheckFree, true) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			misc.IsFree = v.classifier.IsFree(ctx, addr.Domain)
		}()
	}
	if p.SuggestDomain {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s, ok := suggest.Domain(ctx, v.cache, addr.Domain, 0); ok {
				misc.SuggestedDomain = s.Suggested
			}
		}()
	}
	if p.CheckDomainAge {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec, err := lookup.LookupWhois(ctx, v.cache, v.httpClient, addr.Domain); err == nil {
				misc.DomainAgeDays = rec.AgeDays()
			}
		}()
	}
	if verifyMX {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mx = lookup.ResolveMX(ctx, v.cache, v.resolver, addr.Domain, timeout)
		}()
	}
	wg.Wait()

	misc.ProviderTag = provider.Classify(mx.Best(), addr.Domain)
	result.Misc = &misc

	if verifyMX {
		result.MX = &mx
		if !mx.Success {
			result.ErrorKind = mx.ErrorKind
			result.Reachability = verdict(&result)
			result.DurationMs = time.Since(start).Milliseconds()
			return result, nil
		}
	}

	if outcome := v.probe(ctx, p, addr, mx, misc.ProviderTag); outcome != nil {
		result.SMTP = outcome
		result.ErrorKind = outcome.ErrorKind
	}

	if err := ctx.Err(); err != nil && result.ErrorKind == "" {
		result.ErrorKind = models.ErrCancelled
	}

	result.Reachability = verdict(&result)
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// probe picks the verification channel for the classified provider:
// Yahoo HTTP probe, WebDriver recovery flow, or the SMTP conversation.
// Side-channels are only ever used for the providers they belong to.
func (v *Verifier) probe(ctx context.Context, p Params, addr models.Address, mx models.MXLookup, tag models.ProviderTag) *models.SMTPOutcome {
	headless := p.Headless != nil && p.Headless.Endpoint != ""

	switch {
	case tag == models.ProviderYahoo && p.UseYahooAPI:
		outcome := sidechannel.VerifyYahoo(ctx, v.httpClient, addr.Local)
		return &outcome

	case tag == models.ProviderYahoo && p.UseYahooHeadless && headless:
		script := sidechannel.YahooRecoveryScript(addr.Normalized, p.Headless.Screenshot)
		outcome := v.runHeadless(ctx, p, script, tag)
		return &outcome

	case tag == models.ProviderGmail && headless:
		script := sidechannel.GmailRecoveryScript(addr.Normalized, p.Headless.Screenshot)
		outcome := v.runHeadless(ctx, p, script, tag)
		return &outcome

	case p.VerifySMTP && mx.Success:
		outcome := v.verifySMTP(ctx, p, addr, mx, tag)
		return &outcome
	}

	return nil
}

func (v *Verifier) runHeadless(ctx context.Context, p Params, script sidechannel.Script, tag models.ProviderTag) models.SMTPOutcome {
	wd := sidechannel.NewWebDriver(p.Headless.Endpoint)
	if v.httpClient != nil {
		wd.Client = v.httpClient
	}
	if p.Headless.WaitTimeout > 0 {
		wd.WaitTimeout = p.Headless.WaitTimeout
	}
	return wd.RunForOutcome(ctx, script, tag)
}

func (v *Verifier) verifySMTP(ctx context.Context, p Params, addr models.Address, mx models.MXLookup, tag models.ProviderTag) models.SMTPOutcome {
	// Without provider optimizations, every host gets the generic tuning
	// profile. The tag still drives reply classification.
	tuneTag := tag
	if !p.EnableProviderOptimizations {
		tuneTag = models.ProviderEverythingElse
	}
	tuning := provider.TuningFor(tuneTag)

	opts := smtp.Options{
		MXHost:    mx.Best(),
		Local:     addr.Local,
		Domain:    addr.Domain,
		Tag:       tag,
		FromEmail: p.FromEmail,
		HelloName: p.HelloName,

		Ports:          p.SMTP.Ports,
		ConnectTimeout: p.SMTP.ConnectTimeout,
		CommandTimeout: p.SMTP.CommandTimeout,
		SessionTimeout: p.SMTP.SessionTimeout,
		Retries:        p.SMTP.Retries,

		TLS:        tuning.TLS,
		TLSKnown:   true,
		LenientTLS: p.SMTP.LenientTLS,
		EnableVRFY: p.SMTP.EnableVRFY,
		Steps:      p.SMTP.Steps,

		Dialer: v.dialer,
		Cache:  v.cache,
		Debug:  v.debug,
	}
	if len(opts.Ports) == 0 {
		opts.Ports = tuning.Ports
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = tuning.ConnectTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = tuning.Retries
	}
	if opts.FromEmail == "" {
		opts.FromEmail = DefaultFromEmail
	}
	if opts.HelloName == "" {
		opts.HelloName = DefaultHelloName
	}

	return smtp.Verify(ctx, opts)
}

// verdict applies the reachability decision table. Rows are ordered; the
// first match wins.
func verdict(r *models.VerificationResult) models.Reachability {
	if !r.Syntax.OK {
		return models.ReachabilityInvalid
	}
	if r.MX != nil && !r.MX.Success {
		if r.MX.ErrorKind == models.ErrMxNotFound {
			return models.ReachabilityInvalid
		}
		return models.ReachabilityUnknown
	}

	out := r.SMTP
	if out != nil && !out.CanConnect {
		return models.ReachabilityUnknown
	}
	if r.Misc != nil && r.Misc.IsDisposable {
		return models.ReachabilityRisky
	}
	if out == nil {
		return models.ReachabilityUnknown
	}
	if out.IsDeliverable {
		return models.ReachabilitySafe
	}
	if out.HasFullInbox {
		// The mailbox exists but cannot accept right now.
		return models.ReachabilityRisky
	}
	if definitiveNegative(out.ErrorKind) {
		return models.ReachabilityInvalid
	}
	// Throttling, policy blocks and side-channel failures are never a
	// definitive negative.
	return models.ReachabilityUnknown
}

// definitiveNegative reports whether the outcome proves the mailbox does
// not accept mail, as opposed to the probe being refused or deferred. An
// empty kind on a clean probe means the channel answered "no account".
func definitiveNegative(kind models.ErrorKind) bool {
	switch kind {
	case "", models.ErrInvalid, models.ErrDisabled:
		return true
	}
	return false
}
