package sidechannel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"verimail/internal/models"
)

// Step actions understood by the script interpreter.
const (
	ActionNavigate = "navigate"
	ActionWaitFor  = "waitFor"
	ActionType     = "type"
	ActionClick    = "click"
	ActionExecute  = "execute"
)

// ScriptStep is one instruction of a provider flow. Target is a URL for
// navigate, a CSS selector for waitFor/type/click, and ignored for
// execute. Value carries the text to type or the JS to run.
type ScriptStep struct {
	Action string
	Target string
	Value  string
}

// Script encodes one provider's recovery flow plus the indicator strings
// searched in the final page text.
type Script struct {
	Steps             []ScriptStep
	ExistsIndicators  []string // page text proving the account exists
	MissingIndicators []string // page text proving it does not
	Screenshot        bool
}

// Verdict is the interpreter's result.
type Verdict struct {
	Success     bool
	EmailExists bool
	Screenshot  string // base64 PNG when requested
}

// WebDriver talks to a remote W3C WebDriver endpoint (chromedriver,
// geckodriver, selenium grid).
type WebDriver struct {
	Endpoint    string
	Client      *http.Client
	WaitTimeout time.Duration
}

// NewWebDriver targets endpoint, e.g. "http://127.0.0.1:9515".
func NewWebDriver(endpoint string) *WebDriver {
	return &WebDriver{
		Endpoint:    strings.TrimSuffix(endpoint, "/"),
		Client:      &http.Client{Timeout: 30 * time.Second},
		WaitTimeout: 10 * time.Second,
	}
}

// RunScript executes the steps in a fresh browser session, then searches
// document.body.innerText for the indicator strings. The session is
// always deleted, whatever happens mid-script.
func (w *WebDriver) RunScript(ctx context.Context, script Script) (Verdict, error) {
	sessionID, err := w.newSession(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("webdriver session: %w", err)
	}
	defer w.deleteSession(sessionID)

	for i, step := range script.Steps {
		if err := w.runStep(ctx, sessionID, step); err != nil {
			return Verdict{}, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	bodyText, err := w.executeSync(ctx, sessionID, "return document.body.innerText", nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("reading page text: %w", err)
	}

	verdict := Verdict{}
	if script.Screenshot {
		if shot, err := w.screenshot(ctx, sessionID); err == nil {
			verdict.Screenshot = shot
		}
	}

	lower := strings.ToLower(bodyText)
	for _, ind := range script.ExistsIndicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			verdict.Success = true
			verdict.EmailExists = true
			return verdict, nil
		}
	}
	for _, ind := range script.MissingIndicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			verdict.Success = true
			verdict.EmailExists = false
			return verdict, nil
		}
	}
	return verdict, fmt.Errorf("no indicator matched in page text")
}

// RunForOutcome adapts a script verdict into the SMTPOutcome shape used
// across the pipeline.
func (w *WebDriver) RunForOutcome(ctx context.Context, script Script, tag models.ProviderTag) models.SMTPOutcome {
	outcome := models.SMTPOutcome{Tag: tag, ProviderUsed: "webdriver"}
	verdict, err := w.RunScript(ctx, script)
	if err != nil {
		outcome.ErrorKind = models.ErrHeadlessScript
		outcome.RawReply = err.Error()
		return outcome
	}
	outcome.CanConnect = true
	outcome.IsDeliverable = verdict.EmailExists
	return outcome
}

func (w *WebDriver) runStep(ctx context.Context, sessionID string, step ScriptStep) error {
	switch step.Action {
	case ActionNavigate:
		return w.navigate(ctx, sessionID, step.Target)
	case ActionWaitFor:
		return w.waitFor(ctx, sessionID, step.Target)
	case ActionType:
		elementID, err := w.findElement(ctx, sessionID, step.Target)
		if err != nil {
			return err
		}
		return w.sendKeys(ctx, sessionID, elementID, step.Value)
	case ActionClick:
		elementID, err := w.findElement(ctx, sessionID, step.Target)
		if err != nil {
			return err
		}
		return w.click(ctx, sessionID, elementID)
	case ActionExecute:
		_, err := w.executeSync(ctx, sessionID, step.Value, nil)
		return err
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// waitFor polls for the selector until the wait timeout elapses.
func (w *WebDriver) waitFor(ctx context.Context, sessionID, selector string) error {
	deadline := time.Now().Add(w.WaitTimeout)
	for {
		if _, err := w.findElement(ctx, sessionID, selector); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("element %q did not appear within %v", selector, w.WaitTimeout)
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// --- W3C wire calls ---

func (w *WebDriver) newSession(ctx context.Context) (string, error) {
	payload := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"goog:chromeOptions": map[string]interface{}{
					"args": []string{"--headless=new", "--disable-gpu", "--no-sandbox"},
				},
			},
		},
	}
	var out struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := w.post(ctx, "/session", payload, &out); err != nil {
		return "", err
	}
	if out.Value.SessionID == "" {
		return "", fmt.Errorf("no session id in response")
	}
	return out.Value.SessionID, nil
}

func (w *WebDriver) deleteSession(sessionID string) {
	req, err := http.NewRequest(http.MethodDelete, w.Endpoint+"/session/"+sessionID, nil)
	if err != nil {
		return
	}
	if resp, err := w.Client.Do(req); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (w *WebDriver) navigate(ctx context.Context, sessionID, url string) error {
	return w.post(ctx, "/session/"+sessionID+"/url", map[string]string{"url": url}, nil)
}

func (w *WebDriver) findElement(ctx context.Context, sessionID, selector string) (string, error) {
	payload := map[string]string{"using": "css selector", "value": selector}
	var out struct {
		Value map[string]string `json:"value"`
	}
	if err := w.post(ctx, "/session/"+sessionID+"/element", payload, &out); err != nil {
		return "", err
	}
	for _, id := range out.Value {
		return id, nil
	}
	return "", fmt.Errorf("element %q not found", selector)
}

func (w *WebDriver) sendKeys(ctx context.Context, sessionID, elementID, text string) error {
	return w.post(ctx, "/session/"+sessionID+"/element/"+elementID+"/value", map[string]string{"text": text}, nil)
}

func (w *WebDriver) click(ctx context.Context, sessionID, elementID string) error {
	return w.post(ctx, "/session/"+sessionID+"/element/"+elementID+"/click", map[string]interface{}{}, nil)
}

func (w *WebDriver) executeSync(ctx context.Context, sessionID, script string, args []interface{}) (string, error) {
	if args == nil {
		args = []interface{}{}
	}
	var out struct {
		Value interface{} `json:"value"`
	}
	err := w.post(ctx, "/session/"+sessionID+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	}, &out)
	if err != nil {
		return "", err
	}
	if s, ok := out.Value.(string); ok {
		return s, nil
	}
	return "", nil
}

func (w *WebDriver) screenshot(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.Endpoint+"/session/"+sessionID+"/screenshot", nil)
	if err != nil {
		return "", err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Value, nil
}

func (w *WebDriver) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webdriver %s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
