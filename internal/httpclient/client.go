// Package httpclient provides the HTTP client used to talk to gateway
// appliances: bounded timeout, optional lax TLS for self-signed
// appliance certificates, and a politeness rate limiter so status
// polling cannot hammer a host.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/audss/oncall/errors"
)

// Options configures a gateway HTTP client.
type Options struct {
	// InsecureSkipVerify disables TLS certificate verification. Gateway
	// appliances commonly serve self-signed certificates on the
	// management interface.
	InsecureSkipVerify bool

	// RequestsPerMinute caps outbound requests to the host. Zero means
	// no limit.
	RequestsPerMinute int
}

// Client wraps http.Client with a per-host request limiter.
type Client struct {
	*http.Client
	limiter *rate.Limiter
}

// New creates a gateway HTTP client with the given per-call timeout.
func New(timeout time.Duration, opts Options) *Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute)
	}

	return &Client{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: limiter,
	}
}

// Do executes the request after waiting for limiter headroom.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, "rate limit wait cancelled")
		}
	}
	return c.Client.Do(req)
}
