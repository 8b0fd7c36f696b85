package provider

import (
	"time"

	"verimail/internal/models"
)

// TLSPolicy says how hard a session pushes for STARTTLS.
type TLSPolicy int

const (
	// TLSOpportunistic upgrades when offered and silently stays on
	// plaintext when the upgrade is unavailable or fails.
	TLSOpportunistic TLSPolicy = iota
	// TLSPreferred attempts the upgrade whenever offered; a failed
	// handshake fails the session unless the caller allows lenient TLS.
	TLSPreferred
)

// Tuning is the per-provider SMTP probing profile.
type Tuning struct {
	Ports          []int
	ConnectTimeout time.Duration
	Retries        int
	TLS            TLSPolicy
}

var tunings = map[models.ProviderTag]Tuning{
	models.ProviderGmail: {
		Ports:          []int{587, 465, 25},
		ConnectTimeout: 15 * time.Second,
		Retries:        1,
		TLS:            TLSPreferred,
	},
	models.ProviderYahoo: {
		Ports:          []int{587, 25},
		ConnectTimeout: 20 * time.Second,
		Retries:        2,
		TLS:            TLSPreferred,
	},
	models.ProviderHotmailB2C: {
		Ports:          []int{587, 25},
		ConnectTimeout: 15 * time.Second,
		Retries:        2,
		TLS:            TLSPreferred,
	},
	models.ProviderHotmailB2B: {
		Ports:          []int{587, 25},
		ConnectTimeout: 15 * time.Second,
		Retries:        2,
		TLS:            TLSPreferred,
	},
	models.ProviderProofpoint: {
		Ports:          []int{25, 587},
		ConnectTimeout: 20 * time.Second,
		Retries:        2,
		TLS:            TLSPreferred,
	},
	models.ProviderMimecast: {
		Ports:          []int{25, 587},
		ConnectTimeout: 20 * time.Second,
		Retries:        2,
		TLS:            TLSPreferred,
	},
}

// defaultTuning covers everythingElse and unknown tags.
var defaultTuning = Tuning{
	Ports:          []int{25, 587},
	ConnectTimeout: 10 * time.Second,
	Retries:        2,
	TLS:            TLSOpportunistic,
}

// TuningFor returns a copy of the probing profile for a tag.
func TuningFor(tag models.ProviderTag) Tuning {
	t, ok := tunings[tag]
	if !ok {
		t = defaultTuning
	}
	ports := make([]int, len(t.Ports))
	copy(ports, t.Ports)
	t.Ports = ports
	return t
}
