package verimail

import "time"

// Default knobs for Params.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultFromEmail   = "test@example.com"
	DefaultHelloName   = "example.com"
	DefaultConcurrency = 5
)

// Params are the per-call options recognized by Verify.
// Zero values mean "use the default"; the three *bool fields default to
// true when nil, matching their documented defaults.
type Params struct {
	// EmailAddress is the address to verify. Required.
	EmailAddress string

	// Timeout is the overall deadline for the call. Default: 5s.
	Timeout time.Duration

	// VerifyMX runs the MX resolution phase. Default: true.
	VerifyMX *bool
	// VerifySMTP runs the SMTP conversation phase. Default: false.
	VerifySMTP bool
	// CheckDisposable / CheckFree run the dataset lookups. Default: true.
	CheckDisposable *bool
	CheckFree       *bool

	// SuggestDomain adds a typo suggestion for near-miss provider
	// domains. Default: false.
	SuggestDomain bool
	// CheckDomainAge adds the WHOIS/RDAP registration age. Default: false.
	CheckDomainAge bool

	// FromEmail and HelloName identify the probing client in
	// MAIL FROM and EHLO. Defaults: test@example.com / example.com.
	FromEmail string
	HelloName string

	// SMTP overrides individual knobs of the SMTP phase.
	SMTP SMTPParams

	// EnableProviderOptimizations applies the per-provider tuning table
	// (ports, timeouts, retries). Default: false, so everything is
	// probed with the generic profile.
	EnableProviderOptimizations bool

	// UseYahooAPI verifies Yahoo addresses through the registration
	// availability endpoint instead of SMTP. Default: false.
	UseYahooAPI bool
	// UseYahooHeadless verifies Yahoo addresses through the WebDriver
	// recovery flow. Requires Headless. Default: false.
	UseYahooHeadless bool
	// Headless configures the WebDriver endpoint. When set, Gmail
	// addresses are also verified through the recovery flow.
	Headless *HeadlessParams
}

// SMTPParams tune the SMTP phase. Zero values fall back to the
// provider-tuned (or generic) defaults.
type SMTPParams struct {
	Ports          []int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	SessionTimeout time.Duration
	Retries        int

	// LenientTLS allows falling back to plaintext within a session when
	// the STARTTLS upgrade fails.
	LenientTLS bool
	// EnableVRFY appends the VRFY step. Most servers refuse it.
	EnableVRFY bool
	// Steps replaces the default conversation sequence.
	Steps []Step
}

// HeadlessParams configure the WebDriver side-channel.
type HeadlessParams struct {
	// Endpoint is the W3C WebDriver URL, e.g. "http://127.0.0.1:9515".
	Endpoint string
	// Screenshot captures the final page for auditing.
	Screenshot bool
	// WaitTimeout bounds each waitFor step. Default: 10s.
	WaitTimeout time.Duration
}

// BatchParams are the options for VerifyBatch.
type BatchParams struct {
	EmailAddresses []string
	// Concurrency bounds the worker pool. Default: 5.
	Concurrency int
	// Options apply to every address in the batch.
	Options Params
}

func boolOpt(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Bool is a convenience for filling the optional boolean fields.
func Bool(v bool) *bool { return &v }
