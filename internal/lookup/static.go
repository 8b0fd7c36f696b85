package lookup

import "strings"

// Sets are the static domain datasets the misc classifier consults.
// Callers may swap in the full published lists; the embedded defaults
// cover the common cases and keep the package self-contained.
type Sets struct {
	Disposable map[string]struct{}
	Free       map[string]struct{}
}

// DefaultSets returns a copy of the embedded datasets.
func DefaultSets() Sets {
	return Sets{Disposable: cloneSet(disposableDomains), Free: cloneSet(freeDomains)}
}

func cloneSet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

// Common burner providers.
var disposableDomains = map[string]struct{}{
	"temp-mail.org": {}, "10minutemail.com": {}, "guerrillamail.com": {},
	"mailinator.com": {}, "yopmail.com": {}, "throwawaymail.com": {},
	"tempmail.net": {}, "sharklasers.com": {}, "dispostable.com": {},
	"getnada.com": {}, "maildrop.cc": {}, "trashmail.com": {},
	"fakeinbox.com": {}, "mytemp.email": {}, "mohmal.com": {},
	"tempmailo.com": {}, "emailondeck.com": {}, "mintemail.com": {},
	"spamgourmet.com": {}, "mailnesia.com": {},
}

// Major free consumer providers.
var freeDomains = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {},
	"yahoo.com": {}, "ymail.com": {}, "rocketmail.com": {},
	"hotmail.com": {}, "outlook.com": {}, "live.com": {}, "msn.com": {},
	"icloud.com": {}, "me.com": {}, "mac.com": {},
	"aol.com": {}, "zoho.com": {}, "mail.com": {},
	"gmx.com": {}, "gmx.net": {}, "gmx.de": {},
	"protonmail.com": {}, "proton.me": {}, "fastmail.com": {},
	"yandex.com": {}, "yandex.ru": {}, "tutanota.com": {},
}

// Generic function/role prefixes.
var roleAccounts = map[string]bool{
	"admin": true, "support": true, "info": true, "sales": true,
	"contact": true, "help": true, "office": true, "marketing": true,
	"jobs": true, "billing": true, "abuse": true, "postmaster": true,
	"noreply": true, "no-reply": true, "webmaster": true, "hostmaster": true,
	"hr": true, "security": true, "team": true,
}

// IsRoleAccount checks if the local part is a generic function/role.
func IsRoleAccount(local string) bool {
	return roleAccounts[strings.ToLower(local)]
}
