package smtp

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"verimail/internal/models"
)

// Category is the semantic meaning of an SMTP reply or transport error.
type Category string

const (
	CategoryDisabled    Category = "disabled"
	CategoryFullInbox   Category = "fullInbox"
	CategoryInvalid     Category = "invalid"
	CategoryCatchAll    Category = "catchAll"
	CategoryRateLimited Category = "rateLimited"
	CategoryBlocked     Category = "blocked"
	CategoryTransient   Category = "transient"
	CategoryUnknown     Category = "unknown"
)

// Severity says whether the condition is worth retrying.
type Severity string

const (
	SeverityPermanent Severity = "permanent"
	SeverityTemporary Severity = "temporary"
	SeverityUnknown   Severity = "unknown"
)

// Classification is the normalized meaning of a reply or error.
type Classification struct {
	Category Category
	Severity Severity
	Kind     models.ErrorKind
	Note     string // provider-specific machine-readable code, if any
}

// Retryable reports whether another attempt could change the outcome.
func (c Classification) Retryable() bool {
	return c.Severity == SeverityTemporary
}

// Phrase tables. The block shield is checked first: a server that says
// "blocked" is describing our connection, not the recipient.
var (
	blockedPhrases = []string{
		"blocked", "spam", "blacklisted", "rejected by policy",
		"banned", "access denied", "reputation", "spamhaus",
		"client host rejected", "not permitted",
	}
	fullInboxPhrases = []string{
		"mailbox full", "over quota", "storage limit", "insufficient storage",
	}
	rateLimitedPhrases = []string{
		"rate limit", "try again later", "greylist", "deferred",
		"too many requests", "temporarily",
	}
	disabledPhrases = []string{
		"account disabled", "disabled", "suspended", "account inactive",
	}
	invalidPhrases = []string{
		"recipient unknown", "no such user", "mailbox unavailable",
		"invalid recipient", "user unknown", "does not exist",
		"recipient rejected", "invalid mailbox", "unrouteable address",
		"address rejected", "bad destination",
	}
)

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ClassifyReply maps an SMTP reply line to its semantic category, then
// applies the provider overlay. msg is the reply text only; the provider
// tag always comes from the MX host, never from the reply body.
func ClassifyReply(code int, msg string, tag models.ProviderTag) Classification {
	lower := strings.ToLower(msg)

	var cls Classification
	switch {
	case containsAny(lower, blockedPhrases):
		cls = Classification{Category: CategoryBlocked, Severity: SeverityPermanent, Kind: models.ErrBlocked}
	case code == 452 || code == 552 || containsAny(lower, fullInboxPhrases):
		cls = Classification{Category: CategoryFullInbox, Severity: SeverityTemporary, Kind: models.ErrFullInbox}
	case code == 421 || code == 450 || code == 451 || containsAny(lower, rateLimitedPhrases):
		cls = Classification{Category: CategoryRateLimited, Severity: SeverityTemporary, Kind: models.ErrRateLimited}
	case containsAny(lower, disabledPhrases):
		cls = Classification{Category: CategoryDisabled, Severity: SeverityPermanent, Kind: models.ErrDisabled}
	case code == 550 || code == 551 || code == 553 || containsAny(lower, invalidPhrases):
		cls = Classification{Category: CategoryInvalid, Severity: SeverityPermanent, Kind: models.ErrInvalid}
	case code >= 400 && code < 500:
		cls = Classification{Category: CategoryTransient, Severity: SeverityTemporary, Kind: models.ErrUnknownReply}
	case code >= 500:
		cls = Classification{Category: CategoryUnknown, Severity: SeverityPermanent, Kind: models.ErrUnknownReply}
	default:
		cls = Classification{Category: CategoryUnknown, Severity: SeverityUnknown, Kind: models.ErrUnknownReply}
	}

	return applyOverlay(cls, tag, lower)
}

// providerMarkers are the banner fragments each provider family leaves in
// its replies.
var providerMarkers = map[models.ProviderTag][]string{
	models.ProviderGmail:      {"g-smtp", "gsmtp", "google", "gmail"},
	models.ProviderYahoo:      {"yahoo", "yahoodns"},
	models.ProviderHotmailB2C: {"outlook", "hotmail", "microsoft"},
	models.ProviderHotmailB2B: {"outlook", "protection.outlook", "microsoft"},
	models.ProviderProofpoint: {"proofpoint", "pphosted"},
	models.ProviderMimecast:   {"mimecast"},
}

// applyOverlay annotates the classification with a provider code when the
// reply carries that provider's markers. The overlay never downgrades
// permanence; it only adds the note.
func applyOverlay(cls Classification, tag models.ProviderTag, lowerMsg string) Classification {
	markers, ok := providerMarkers[tag]
	if !ok {
		return cls
	}
	if containsAny(lowerMsg, markers) {
		cls.Note = string(tag) + "/" + string(cls.Category)
	}
	return cls
}

// stage names for transport errors; they decide which error kind a
// timeout maps to.
const (
	stageConnect = "connect"
	stageTLS     = "tls"
	stageRead    = "read"
	stageWrite   = "write"
)

// transportError is a transport-layer failure tagged with the session
// stage it occurred in.
type transportError struct {
	stage string
	err   error
}

func (e *transportError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// ClassifyTransport maps a transport error to its semantic category.
// Always transient and temporary; the Kind distinguishes timeout from
// network classes for the verdict table.
func ClassifyTransport(err error) Classification {
	cls := Classification{Category: CategoryTransient, Severity: SeverityTemporary}

	stage := stageConnect
	var te *transportError
	if errors.As(err, &te) {
		stage = te.stage
	}

	switch {
	case errors.Is(err, context.Canceled):
		cls.Kind = models.ErrCancelled
	case stage == stageTLS:
		cls.Kind = models.ErrTLSFailure
	case isTimeout(err):
		if stage == stageConnect {
			cls.Kind = models.ErrConnectTimeout
		} else {
			cls.Kind = models.ErrReadTimeout
		}
	case errors.Is(err, syscall.ECONNREFUSED):
		cls.Kind = models.ErrConnectRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		cls.Kind = models.ErrConnectReset
	case stage == stageWrite:
		cls.Kind = models.ErrWriteFailure
	case stage == stageConnect:
		cls.Kind = models.ErrConnectRefused
	default:
		cls.Kind = models.ErrConnectReset
	}
	return cls
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
