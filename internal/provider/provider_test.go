package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verimail/internal/models"
)

func TestClassifyMX(t *testing.T) {
	tests := []struct {
		host string
		want models.ProviderTag
	}{
		{"gmail-smtp-in.l.google.com", models.ProviderGmail},
		{"alt1.gmail-smtp-in.l.google.com", models.ProviderGmail},
		{"aspmx.l.google.com", models.ProviderGmail},
		{"ASPMX.L.GOOGLE.COM.", models.ProviderGmail},

		{"mta5.am0.yahoodns.net", models.ProviderYahoo},
		{"mta7.am0.yahoodns.net.", models.ProviderYahoo},
		{"mx-eu.mail.am0.yahoodns.net", models.ProviderYahoo},
		{"mx1.mail.ymail.com", models.ProviderYahoo},

		{"contoso-com.mail.protection.outlook.com", models.ProviderHotmailB2B},
		{"acme.protection.outlook.com", models.ProviderHotmailB2B},
		{"hotmail-com.olc.protection.outlook.com", models.ProviderHotmailB2C},
		{"outlook-com.olc.protection.outlook.com", models.ProviderHotmailB2C},
		{"eur.olc.protection.outlook.com", models.ProviderHotmailB2C},

		{"mxa-00169c01.gslb.pphosted.com", models.ProviderProofpoint},
		{"mx1-us1.ppe-hosted.com", models.ProviderProofpoint},
		{"us-smtp-inbound-1.mimecast.com", models.ProviderMimecast},
		{"eu.mimecast.com", models.ProviderMimecast},

		{"mail.example.com", models.ProviderEverythingElse},
		{"", models.ProviderEverythingElse},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMX(tt.host))
		})
	}
}

// Both families live under protection.outlook.com; the B2B patterns are
// more specific and must win.
func TestClassifyMXB2BPrecedence(t *testing.T) {
	assert.Equal(t, models.ProviderHotmailB2B, ClassifyMX("tenant-com.mail.protection.outlook.com"))
	assert.Equal(t, models.ProviderHotmailB2C, ClassifyMX("hotmail-com.olc.protection.outlook.com"))
}

func TestClassifyMXIsDeterministic(t *testing.T) {
	first := ClassifyMX("mta5.am0.yahoodns.net")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyMX("mta5.am0.yahoodns.net"))
	}
}

func TestClassifyDomain(t *testing.T) {
	assert.Equal(t, models.ProviderGmail, ClassifyDomain("gmail.com"))
	assert.Equal(t, models.ProviderYahoo, ClassifyDomain("rocketmail.com"))
	assert.Equal(t, models.ProviderHotmailB2C, ClassifyDomain("live.com"))

	// Subdomains of known providers never match.
	assert.Equal(t, models.ProviderEverythingElse, ClassifyDomain("mail.gmail.com"))
	assert.Equal(t, models.ProviderEverythingElse, ClassifyDomain("example.com"))
}

func TestClassifyPrefersMX(t *testing.T) {
	// A custom domain hosted on Google is gmail infrastructure.
	assert.Equal(t, models.ProviderGmail, Classify("aspmx.l.google.com", "example.com"))
	// No MX host: fall back to the domain.
	assert.Equal(t, models.ProviderGmail, Classify("", "gmail.com"))
}

func TestTuningFor(t *testing.T) {
	gmail := TuningFor(models.ProviderGmail)
	assert.Equal(t, []int{587, 465, 25}, gmail.Ports)
	assert.Equal(t, 1, gmail.Retries)

	def := TuningFor(models.ProviderEverythingElse)
	assert.Equal(t, []int{25, 587}, def.Ports)
	assert.Equal(t, TLSOpportunistic, def.TLS)

	// Unknown tags get the generic profile.
	assert.Equal(t, def, TuningFor(models.ProviderTag("nonsense")))

	// Returned tunings are copies; mutating one must not poison the table.
	gmail.Ports[0] = 9999
	assert.Equal(t, 587, TuningFor(models.ProviderGmail).Ports[0])
}
