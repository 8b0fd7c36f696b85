package models

// Reachability is the final verdict about an address.
type Reachability string

const (
	ReachabilitySafe    Reachability = "safe"
	ReachabilityRisky   Reachability = "risky"
	ReachabilityInvalid Reachability = "invalid"
	ReachabilityUnknown Reachability = "unknown"
)

// ErrorKind identifies what went wrong, at whichever layer it happened.
type ErrorKind string

const (
	// Input / syntax
	ErrNotAString    ErrorKind = "NotAString"
	ErrMissingAt     ErrorKind = "MissingAt"
	ErrLocalTooLong  ErrorKind = "LocalTooLong"
	ErrDomainTooLong ErrorKind = "DomainTooLong"
	ErrBadLocal      ErrorKind = "BadLocal"
	ErrBadDomain     ErrorKind = "BadDomain"

	// DNS
	ErrMxTimeout  ErrorKind = "MxTimeout"
	ErrMxNotFound ErrorKind = "MxNotFound"
	ErrMxNetwork  ErrorKind = "MxNetwork"

	// Transport
	ErrConnectTimeout ErrorKind = "ConnectTimeout"
	ErrConnectRefused ErrorKind = "ConnectRefused"
	ErrConnectReset   ErrorKind = "ConnectReset"
	ErrTLSFailure     ErrorKind = "TlsFailure"
	ErrReadTimeout    ErrorKind = "ReadTimeout"
	ErrWriteFailure   ErrorKind = "WriteFailure"
	ErrCancelled      ErrorKind = "Cancelled"

	// SMTP semantic
	ErrDisabled     ErrorKind = "Disabled"
	ErrInvalid      ErrorKind = "Invalid"
	ErrFullInbox    ErrorKind = "FullInbox"
	ErrCatchAll     ErrorKind = "CatchAll"
	ErrRateLimited  ErrorKind = "RateLimited"
	ErrBlocked      ErrorKind = "Blocked"
	ErrUnknownReply ErrorKind = "UnknownReply"

	// Provider side-channels
	ErrHTTPProbe      ErrorKind = "HttpProbeError"
	ErrHeadlessScript ErrorKind = "HeadlessScriptError"
)

// ProviderTag categorizes the mail infrastructure behind an address.
// Derived from the MX hostname; domain-based derivation is a weaker fallback.
type ProviderTag string

const (
	ProviderGmail          ProviderTag = "gmail"
	ProviderYahoo          ProviderTag = "yahoo"
	ProviderHotmailB2C     ProviderTag = "hotmailB2C"
	ProviderHotmailB2B     ProviderTag = "hotmailB2B"
	ProviderProofpoint     ProviderTag = "proofpoint"
	ProviderMimecast       ProviderTag = "mimecast"
	ProviderEverythingElse ProviderTag = "everythingElse"
)

// Address is a parsed, normalized email address.
// Invariant: Normalized == Local + "@" + Domain.
type Address struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Local      string `json:"local"`
	Domain     string `json:"domain"`
}

// SyntaxResult is the outcome of the RFC 5321 structural validation.
type SyntaxResult struct {
	OK        bool      `json:"ok"`
	Local     string    `json:"local,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// MXRecord is a single mail exchanger, priority-ordered within a lookup.
type MXRecord struct {
	Host string `json:"host"`
	Pref uint16 `json:"pref"`
}

// MXLookup is the outcome of an MX resolution.
// Invariant: Success ⇔ len(Records) > 0.
type MXLookup struct {
	Success   bool       `json:"success"`
	Records   []MXRecord `json:"records,omitempty"`
	ErrorKind ErrorKind  `json:"error_kind,omitempty"`
	RawError  string     `json:"raw_error,omitempty"`
}

// Best returns the lowest-priority (most preferred) MX host without the
// trailing dot, or "" when the lookup failed.
func (l MXLookup) Best() string {
	if !l.Success || len(l.Records) == 0 {
		return ""
	}
	host := l.Records[0].Host
	if n := len(host); n > 0 && host[n-1] == '.' {
		host = host[:n-1]
	}
	return host
}

// SMTPOutcome is the structured result of one SMTP verification attempt.
// Invariants: IsDeliverable implies CanConnect; IsCatchAll implies IsDeliverable.
type SMTPOutcome struct {
	CanConnect    bool        `json:"can_connect"`
	IsDeliverable bool        `json:"is_deliverable"`
	IsCatchAll    bool        `json:"is_catch_all"`
	HasFullInbox  bool        `json:"has_full_inbox"`
	IsDisabled    bool        `json:"is_disabled"`
	ProviderUsed  string      `json:"provider_used,omitempty"`
	RawReply      string      `json:"raw_reply,omitempty"`
	Note          string      `json:"note,omitempty"`
	ErrorKind     ErrorKind   `json:"error_kind,omitempty"`
	Tag           ProviderTag `json:"provider_tag,omitempty"`
}

// MiscFacts holds domain- and local-part-level classification facts.
// Frozen for a given domain within the cache TTL window.
type MiscFacts struct {
	IsDisposable    bool        `json:"is_disposable"`
	IsFree          bool        `json:"is_free"`
	IsRoleAccount   bool        `json:"is_role_account"`
	ProviderTag     ProviderTag `json:"provider_tag,omitempty"`
	SuggestedDomain string      `json:"suggested_domain,omitempty"`
	DomainAgeDays   int         `json:"domain_age_days,omitempty"`
}

// VerificationResult aggregates every sub-result for one verification call.
// Immutable once returned.
type VerificationResult struct {
	Email        string       `json:"email"`
	Address      Address      `json:"address"`
	Syntax       SyntaxResult `json:"syntax"`
	MX           *MXLookup    `json:"mx,omitempty"`
	SMTP         *SMTPOutcome `json:"smtp,omitempty"`
	Misc         *MiscFacts   `json:"misc,omitempty"`
	Reachability Reachability `json:"reachability"`
	DurationMs   int64        `json:"duration_ms"`
	ErrorKind    ErrorKind    `json:"error_kind,omitempty"`
	Error        string       `json:"error,omitempty"`
}
