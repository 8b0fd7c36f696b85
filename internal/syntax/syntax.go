// Package syntax validates email addresses against the RFC 5321 length
// and structural rules. Validation is pure and allocation-light: it is on
// the hot path of every verification and of the batch runner.
package syntax

import (
	"strings"

	"verimail/internal/models"
)

// Validate trims, lowercases and structurally validates raw.
// Unicode local parts fail; Punycode (xn--) domain labels pass because
// they are plain ASCII.
func Validate(raw string) (models.Address, models.SyntaxResult) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	addr := models.Address{Raw: raw, Normalized: normalized}

	at := strings.LastIndexByte(normalized, '@')
	if at < 0 {
		return addr, fail(models.ErrMissingAt)
	}

	local, domain := normalized[:at], normalized[at+1:]
	addr.Local, addr.Domain = local, domain

	if len(local) > 64 {
		return addr, fail(models.ErrLocalTooLong)
	}
	if len(domain) > 253 {
		return addr, fail(models.ErrDomainTooLong)
	}
	if !validLocal(local) {
		return addr, fail(models.ErrBadLocal)
	}
	if !validDomain(domain) {
		return addr, fail(models.ErrBadDomain)
	}

	return addr, models.SyntaxResult{OK: true, Local: local, Domain: domain}
}

// ValidateAny is Validate for dynamically-shaped inputs (JSON payloads,
// CSV cells). Anything that is not a string is rejected outright.
func ValidateAny(v interface{}) (models.Address, models.SyntaxResult) {
	s, ok := v.(string)
	if !ok {
		return models.Address{}, fail(models.ErrNotAString)
	}
	return Validate(s)
}

func fail(kind models.ErrorKind) models.SyntaxResult {
	return models.SyntaxResult{OK: false, ErrorKind: kind}
}

// validLocal checks the dot-atom form: one or more atext characters,
// no leading/trailing dot, no adjacent dots.
func validLocal(local string) bool {
	if local == "" {
		return false
	}
	if local[0] == '.' || local[len(local)-1] == '.' {
		return false
	}
	prevDot := false
	for i := 0; i < len(local); i++ {
		c := local[i]
		if c == '.' {
			if prevDot {
				return false
			}
			prevDot = true
			continue
		}
		prevDot = false
		if !isAtext(c) {
			return false
		}
	}
	return true
}

// isAtext reports whether c is an RFC 5321 atom character.
func isAtext(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '/', '=', '?', '^',
		'_', '`', '{', '|', '}', '~', '-':
		return true
	}
	return false
}

// validDomain checks that every DNS label is 1-63 chars, starts and ends
// alphanumeric, and contains only alphanumerics and internal hyphens.
func validDomain(domain string) bool {
	if domain == "" {
		return false
	}
	start := 0
	for i := 0; i <= len(domain); i++ {
		if i < len(domain) && domain[i] != '.' {
			continue
		}
		label := domain[start:i]
		if !validLabel(label) {
			return false
		}
		start = i + 1
	}
	return true
}

func validLabel(label string) bool {
	n := len(label)
	if n == 0 || n > 63 {
		return false
	}
	if !isAlnum(label[0]) || !isAlnum(label[n-1]) {
		return false
	}
	for i := 1; i < n-1; i++ {
		if !isAlnum(label[i]) && label[i] != '-' {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
