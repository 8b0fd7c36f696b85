// Package sidechannel holds the non-SMTP verification paths used for
// providers whose mail exchangers refuse RCPT probing: the Yahoo
// registration-availability HTTP probe and a generic WebDriver-driven
// recovery-flow inspector.
package sidechannel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"verimail/internal/models"
)

const (
	yahooSignupURL   = "https://login.yahoo.com/account/create?specId=yidReg&done=https%3A%2F%2Fwww.yahoo.com"
	yahooValidateURL = "https://login.yahoo.com/account/module/create?validateField=userId"
	yahooSpecID      = "yidReg"

	probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// acrumbPattern extracts the anti-CSRF crumb from the session cookie.
var acrumbPattern = regexp.MustCompile(`s=([^;&]*)&d`)

// Error names in the validation response that prove the account exists.
var yahooTakenErrors = map[string]bool{
	"IDENTIFIER_NOT_AVAILABLE":  true,
	"IDENTIFIER_ALREADY_EXISTS": true,
	"IDENTIFIER_EXISTS":         true,
}

// VerifyYahoo asks Yahoo's registration flow whether the local part is
// still available as a new account name. A taken identifier means the
// mailbox exists. The outcome is SMTPOutcome-shaped so the orchestrator
// can treat both paths uniformly.
func VerifyYahoo(ctx context.Context, client *http.Client, local string) models.SMTPOutcome {
	outcome := models.SMTPOutcome{Tag: models.ProviderYahoo, ProviderUsed: "yahoo-api"}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if client.Jar == nil {
		// The crumb rides on session cookies; work on a shallow copy so
		// the jar never leaks into a caller-shared client.
		jar, _ := cookiejar.New(nil)
		clone := *client
		clone.Jar = jar
		client = &clone
	}

	acrumb, err := fetchAcrumb(ctx, client)
	if err != nil {
		outcome.ErrorKind = models.ErrHTTPProbe
		outcome.RawReply = err.Error()
		return outcome
	}

	taken, raw, err := validateUserID(ctx, client, local, acrumb)
	if err != nil {
		outcome.ErrorKind = models.ErrHTTPProbe
		outcome.RawReply = err.Error()
		return outcome
	}

	outcome.CanConnect = true
	outcome.RawReply = raw
	outcome.IsDeliverable = taken
	return outcome
}

// fetchAcrumb loads the signup landing page and pulls the crumb out of
// the session cookies Yahoo sets on it.
func fetchAcrumb(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yahooSignupURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("signup page returned HTTP %d", resp.StatusCode)
	}

	u, _ := url.Parse(yahooSignupURL)
	for _, c := range client.Jar.Cookies(u) {
		if m := acrumbPattern.FindStringSubmatch(c.Value); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("no acrumb in session cookies")
}

// validateUserID posts the registration form asking only for userId
// validation and inspects the structured errors.
func validateUserID(ctx context.Context, client *http.Client, local, acrumb string) (taken bool, raw string, err error) {
	form := url.Values{}
	form.Set("specId", yahooSpecID)
	form.Set("acrumb", acrumb)
	form.Set("userId", local)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, yahooValidateURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return false, "", fmt.Errorf("validation endpoint returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Errors []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, "", fmt.Errorf("unparsable validation response: %w", err)
	}

	for _, e := range body.Errors {
		if yahooTakenErrors[e.Name] || yahooTakenErrors[e.Error] {
			return true, e.Name, nil
		}
	}
	// No taken-identifier error: the name is available, so no mailbox.
	return false, "IDENTIFIER_AVAILABLE", nil
}
