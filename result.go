package verimail

import (
	"verimail/internal/models"
	"verimail/internal/smtp"
)

// The result shapes live in internal/models; these aliases are the public
// surface so callers never import an internal package.
type (
	Reachability       = models.Reachability
	ErrorKind          = models.ErrorKind
	ProviderTag        = models.ProviderTag
	Address            = models.Address
	SyntaxResult       = models.SyntaxResult
	MXRecord           = models.MXRecord
	MXLookup           = models.MXLookup
	SMTPOutcome        = models.SMTPOutcome
	MiscFacts          = models.MiscFacts
	VerificationResult = models.VerificationResult
)

const (
	ReachabilitySafe    = models.ReachabilitySafe
	ReachabilityRisky   = models.ReachabilityRisky
	ReachabilityInvalid = models.ReachabilityInvalid
	ReachabilityUnknown = models.ReachabilityUnknown
)

const (
	ProviderGmail          = models.ProviderGmail
	ProviderYahoo          = models.ProviderYahoo
	ProviderHotmailB2C     = models.ProviderHotmailB2C
	ProviderHotmailB2B     = models.ProviderHotmailB2B
	ProviderProofpoint     = models.ProviderProofpoint
	ProviderMimecast       = models.ProviderMimecast
	ProviderEverythingElse = models.ProviderEverythingElse
)

const (
	ErrNotAString    = models.ErrNotAString
	ErrMissingAt     = models.ErrMissingAt
	ErrLocalTooLong  = models.ErrLocalTooLong
	ErrDomainTooLong = models.ErrDomainTooLong
	ErrBadLocal      = models.ErrBadLocal
	ErrBadDomain     = models.ErrBadDomain

	ErrMxTimeout  = models.ErrMxTimeout
	ErrMxNotFound = models.ErrMxNotFound
	ErrMxNetwork  = models.ErrMxNetwork

	ErrConnectTimeout = models.ErrConnectTimeout
	ErrConnectRefused = models.ErrConnectRefused
	ErrConnectReset   = models.ErrConnectReset
	ErrTLSFailure     = models.ErrTLSFailure
	ErrReadTimeout    = models.ErrReadTimeout
	ErrWriteFailure   = models.ErrWriteFailure
	ErrCancelled      = models.ErrCancelled

	ErrDisabled     = models.ErrDisabled
	ErrInvalid      = models.ErrInvalid
	ErrFullInbox    = models.ErrFullInbox
	ErrCatchAll     = models.ErrCatchAll
	ErrRateLimited  = models.ErrRateLimited
	ErrBlocked      = models.ErrBlocked
	ErrUnknownReply = models.ErrUnknownReply

	ErrHTTPProbe      = models.ErrHTTPProbe
	ErrHeadlessScript = models.ErrHeadlessScript
)

// Step names one state of the SMTP conversation; pass a custom sequence
// through SMTPParams.Steps.
type Step = smtp.Step

const (
	StepGreeting   = smtp.StepGreeting
	StepEHLO       = smtp.StepEHLO
	StepSTARTTLS   = smtp.StepSTARTTLS
	StepMailFrom   = smtp.StepMailFrom
	StepRcptProbe  = smtp.StepRcptProbe
	StepRcptTarget = smtp.StepRcptTarget
	StepVRFY       = smtp.StepVRFY
	StepQuit       = smtp.StepQuit
)
