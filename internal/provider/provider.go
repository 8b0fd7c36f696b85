// Package provider maps MX hostnames to a closed set of provider tags and
// carries the per-provider SMTP tuning defaults.
package provider

import (
	"regexp"
	"strings"

	"verimail/internal/models"
)

var (
	yahooMTAPattern  = regexp.MustCompile(`^mta\d+\.am0\.yahoodns\.net$`)
	hotmailB2BSingle = regexp.MustCompile(`^[^.]+\.protection\.outlook\.com$`)
)

// ClassifyMX assigns exactly one provider tag to an MX hostname.
// The first matching family wins. hotmailB2B is tested before hotmailB2C:
// both families live under protection.outlook.com and the B2B patterns are
// the more specific ones.
func ClassifyMX(mxHost string) models.ProviderTag {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(mxHost)), ".")
	if host == "" {
		return models.ProviderEverythingElse
	}

	switch {
	case isGmailMX(host):
		return models.ProviderGmail
	case isYahooMX(host):
		return models.ProviderYahoo
	case isHotmailB2BMX(host):
		return models.ProviderHotmailB2B
	case isHotmailB2CMX(host):
		return models.ProviderHotmailB2C
	case isProofpointMX(host):
		return models.ProviderProofpoint
	case isMimecastMX(host):
		return models.ProviderMimecast
	default:
		return models.ProviderEverythingElse
	}
}

func isGmailMX(host string) bool {
	return strings.HasSuffix(host, "l.google.com") ||
		host == "gmail-smtp-in.l.google.com" ||
		host == "aspmx.l.google.com" ||
		strings.HasSuffix(host, ".gmail.com") ||
		strings.HasSuffix(host, "googlemail.com") ||
		strings.HasSuffix(host, ".google.com")
}

func isYahooMX(host string) bool {
	return yahooMTAPattern.MatchString(host) ||
		host == "mx-eu.mail.am0.yahoodns.net" ||
		strings.HasSuffix(host, ".yahoo.com") ||
		strings.HasSuffix(host, ".ymail.com") ||
		strings.HasSuffix(host, ".rocketmail.com") ||
		strings.HasSuffix(host, "yahoodns.net")
}

func isHotmailB2BMX(host string) bool {
	return strings.HasSuffix(host, ".mail.protection.outlook.com") ||
		hotmailB2BSingle.MatchString(host)
}

func isHotmailB2CMX(host string) bool {
	switch host {
	case "hotmail-com.olc.protection.outlook.com",
		"outlook-com.olc.protection.outlook.com",
		"eur.olc.protection.outlook.com":
		return true
	}
	return false
}

func isProofpointMX(host string) bool {
	return strings.HasSuffix(host, "pphosted.com") ||
		strings.HasSuffix(host, "ppe-hosted.com") ||
		strings.Contains(host, "proofpoint")
}

func isMimecastMX(host string) bool {
	return host == "smtp.mimecast.com" ||
		host == "eu.mimecast.com" ||
		strings.Contains(host, "mimecast")
}

// Known consumer domains for the domain-based fallback. Exact matches
// only: mail.gmail.com is everythingElse.
var domainTags = map[string]models.ProviderTag{
	"gmail.com":      models.ProviderGmail,
	"googlemail.com": models.ProviderGmail,
	"yahoo.com":      models.ProviderYahoo,
	"ymail.com":      models.ProviderYahoo,
	"rocketmail.com": models.ProviderYahoo,
	"hotmail.com":    models.ProviderHotmailB2C,
	"outlook.com":    models.ProviderHotmailB2C,
	"live.com":       models.ProviderHotmailB2C,
	"msn.com":        models.ProviderHotmailB2C,
}

// ClassifyDomain is the weaker, exact-domain fallback used when no MX
// host is available.
func ClassifyDomain(domain string) models.ProviderTag {
	if tag, ok := domainTags[strings.ToLower(strings.TrimSpace(domain))]; ok {
		return tag
	}
	return models.ProviderEverythingElse
}

// Classify prefers the MX-derived tag and falls back to the domain.
func Classify(mxHost, domain string) models.ProviderTag {
	if mxHost != "" {
		return ClassifyMX(mxHost)
	}
	return ClassifyDomain(domain)
}
