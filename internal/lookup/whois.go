package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"verimail/internal/cache"
)

// rdapEndpoint is the bootstrap service that redirects to the correct
// TLD registry server.
const rdapEndpoint = "https://rdap.org/domain/"

// WhoisRecord is the parsed registration data for a domain.
type WhoisRecord struct {
	Domain       string    `json:"domain"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AgeDays returns whole days since registration, or 0 when unknown.
func (r WhoisRecord) AgeDays() int {
	if r.RegisteredAt.IsZero() {
		return 0
	}
	return int(time.Since(r.RegisteredAt).Hours() / 24)
}

// defaultWhoisClient follows the RDAP bootstrap redirect chain.
var defaultWhoisClient = &http.Client{Timeout: 10 * time.Second}

// LookupWhois queries RDAP for the domain registration date, with
// cache-aside against the whois namespace. Lookup failures yield a
// zero-valued record and are not cached.
func LookupWhois(ctx context.Context, c *cache.Cache, client *http.Client, domain string) (WhoisRecord, error) {
	domain = ExtractDomain(domain)

	var rec WhoisRecord
	if c.GetJSON(ctx, cache.NSWhois, domain, &rec) {
		return rec, nil
	}

	if client == nil {
		client = defaultWhoisClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rdapEndpoint+domain, nil)
	if err != nil {
		return WhoisRecord{}, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := client.Do(req)
	if err != nil {
		return WhoisRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WhoisRecord{}, &httpStatusError{status: resp.StatusCode}
	}

	// Only the events array matters: we want "registration" / "creation".
	var rdap struct {
		Events []struct {
			Action string `json:"eventAction"`
			Date   string `json:"eventDate"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rdap); err != nil {
		return WhoisRecord{}, err
	}

	var created time.Time
	for _, event := range rdap.Events {
		if event.Action != "registration" && event.Action != "creation" {
			continue
		}
		t, err := time.Parse(time.RFC3339, event.Date)
		if err != nil {
			continue
		}
		if created.IsZero() || t.Before(created) {
			created = t
		}
	}

	rec = WhoisRecord{Domain: domain, RegisteredAt: created}
	c.SetJSON(ctx, cache.NSWhois, domain, rec, 0)
	return rec, nil
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return "rdap: unexpected HTTP status " + strconv.Itoa(e.status)
}
