package sbc

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/internal/httpclient"
)

// Gateway is the abstract capability to push a number to one host and to
// query its currently configured number. Implementations classify every
// failure into an error Outcome; they never return Go errors, because a
// broken host must not abort work against its sibling.
type Gateway interface {
	Target() Target
	Push(ctx context.Context, number string) Outcome
	FetchCurrent(ctx context.Context) Outcome
}

// Credentials authenticate against a gateway's management interface.
type Credentials struct {
	Username string
	Password string
}

// ClientConfig configures a single-host gateway client.
type ClientConfig struct {
	Target      Target
	Credentials Credentials
	// Timeout bounds each HTTP call so one unreachable host cannot stall
	// a dispatcher tick indefinitely.
	Timeout time.Duration
	// VerifyTLS enables certificate verification. Off by default because
	// the appliances serve self-signed management certificates.
	VerifyTLS bool
	// RequestsPerMinute caps calls against this host (0 = unlimited).
	RequestsPerMinute int
	// BaseURL overrides the derived https://{host}/rest URL, for tests.
	BaseURL string
}

// Client speaks the gateway's session-based REST protocol: login, operate
// on the transformation entry, logout. Responses are small XML documents.
type Client struct {
	target  Target
	creds   Credentials
	baseURL string
	http    *httpclient.Client
	log     *zap.SugaredLogger
}

// NewClient creates a gateway client for one target host.
func NewClient(cfg ClientConfig, log *zap.SugaredLogger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/rest", cfg.Target.Host)
	}
	return &Client{
		target:  cfg.Target,
		creds:   cfg.Credentials,
		baseURL: baseURL,
		http: httpclient.New(timeout, httpclient.Options{
			InsecureSkipVerify: !cfg.VerifyTLS,
			RequestsPerMinute:  cfg.RequestsPerMinute,
		}),
		log: log,
	}
}

// Target returns the target this client is bound to.
func (c *Client) Target() Target {
	return c.target
}

// FetchCurrent queries the currently configured on-call number.
func (c *Client) FetchCurrent(ctx context.Context) Outcome {
	if err := c.login(ctx); err != nil {
		return c.errorOutcome(err, "login failed")
	}
	defer c.logout(ctx)

	number, err := c.readNumber(ctx)
	if err != nil {
		return c.errorOutcome(err, "failed to retrieve on-call number")
	}

	return Outcome{
		Host:    c.target.Name,
		Status:  OutcomeSuccess,
		Number:  number,
		Message: fmt.Sprintf("current on-call number: %s", number),
		At:      time.Now().UTC(),
	}
}

// Push sets the on-call number on this host, then reads it back to
// confirm the gateway really took the value. No retries here; retry
// policy belongs to the caller.
func (c *Client) Push(ctx context.Context, number string) Outcome {
	number = strings.ReplaceAll(number, " ", "")

	if err := c.login(ctx); err != nil {
		return c.errorOutcome(err, "login failed")
	}
	defer c.logout(ctx)

	if err := c.writeNumber(ctx, number); err != nil {
		return c.errorOutcome(err, "failed to update on-call number")
	}

	// Read back and verify; a 200 from the appliance does not guarantee
	// the table entry actually changed.
	current, err := c.readNumber(ctx)
	if err != nil {
		return c.errorOutcome(err, "update sent, but verification read failed")
	}
	if current != number {
		return Outcome{
			Host:    c.target.Name,
			Status:  OutcomeError,
			Number:  current,
			Message: fmt.Sprintf("update accepted but verification found %q, expected %q", current, number),
			At:      time.Now().UTC(),
		}
	}

	return Outcome{
		Host:    c.target.Name,
		Status:  OutcomeSuccess,
		Number:  number,
		Message: fmt.Sprintf("on-call number updated to %s", number),
		At:      time.Now().UTC(),
	}
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("Username", c.creds.Username)
	form.Set("Password", c.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "login to %s", c.target.Host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read login response")
	}

	code, err := parseStatusCode(body)
	if err != nil {
		return errors.Wrapf(err, "parse login response from %s", c.target.Host)
	}
	if code != 200 {
		return errors.Newf("login rejected by %s (status %d)", c.target.Host, code)
	}

	return nil
}

// logout is best-effort; a failed logout only leaks a short-lived session
// on the appliance.
func (c *Client) logout(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Debugw("Gateway logout failed", "host", c.target.Name, "error", err)
		}
		return
	}
	resp.Body.Close()
}

func (c *Client) readNumber(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(), nil)
	if err != nil {
		return "", errors.Wrap(err, "build read request")
	}
	req.Header.Set("Accept", "application/vnd.ribbon.elements+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "read transformation entry from %s", c.target.Host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read response body")
	}

	return extractOutputFieldValue(body)
}

func (c *Client) writeNumber(ctx context.Context, number string) error {
	form := url.Values{}
	form.Set("OutputFieldValue", number)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resourceURL(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build update request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "update transformation entry on %s", c.target.Host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read update response")
	}

	code, err := parseStatusCode(body)
	if err != nil {
		return errors.Wrapf(err, "parse update response from %s", c.target.Host)
	}
	if code != 200 {
		return errors.Newf("update rejected by %s (status %d)", c.target.Host, code)
	}

	return nil
}

func (c *Client) resourceURL() string {
	return c.baseURL + "/" + strings.TrimPrefix(c.target.Resource, "/")
}

func (c *Client) errorOutcome(err error, context string) Outcome {
	if c.log != nil {
		c.log.Warnw("Gateway interaction failed",
			"host", c.target.Name,
			"context", context,
			"error", err)
	}
	return Outcome{
		Host:    c.target.Name,
		Status:  OutcomeError,
		Message: fmt.Sprintf("%s: %v", context, err),
		At:      time.Now().UTC(),
	}
}

// restEnvelope mirrors the gateway's XML response shape: a status block
// with an http_code, plus the requested element on reads.
type restEnvelope struct {
	XMLName xml.Name
	Status  struct {
		HTTPCode int `xml:"http_code"`
	} `xml:"status"`
	Entry *transformationEntry `xml:"transformationentry"`
}

// transformationEntry collects the entry's fields without committing to
// the full Ribbon schema; only OutputFieldValue matters here.
type transformationEntry struct {
	Fields []entryField `xml:",any"`
}

type entryField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func parseEnvelope(body []byte) (*restEnvelope, error) {
	var env restEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "malformed XML response")
	}
	return &env, nil
}

func parseStatusCode(body []byte) (int, error) {
	env, err := parseEnvelope(body)
	if err != nil {
		return 0, err
	}
	if env.Status.HTTPCode == 0 {
		return 0, errors.New("response carries no status code")
	}
	return env.Status.HTTPCode, nil
}

// extractOutputFieldValue pulls the on-call number out of a
// transformationentry read response.
func extractOutputFieldValue(body []byte) (string, error) {
	env, err := parseEnvelope(body)
	if err != nil {
		return "", err
	}
	if env.Entry == nil {
		return "", errors.New("response carries no transformationentry element")
	}
	for _, field := range env.Entry.Fields {
		if strings.Contains(field.XMLName.Local, "OutputFieldValue") {
			return strings.TrimSpace(field.Value), nil
		}
	}
	return "", errors.New("transformationentry carries no OutputFieldValue field")
}
