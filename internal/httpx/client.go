// Package httpx wraps outbound HTTP calls with bounded retries on transient
// failures and supports a full session reset after hard connection errors
// (e.g. the outbound interface changed and pooled connections went stale).
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Profile tunes retry behaviour. Interactive browsing tolerates slow servers;
// bulk checking must fail fast so one dead account cannot stall a worker.
type Profile struct {
	Name        string
	MaxRetries  int
	BackoffBase time.Duration
	Timeout     time.Duration
}

var (
	// Interactive is used for single-account mailbox browsing.
	Interactive = Profile{Name: "interactive", MaxRetries: 3, BackoffBase: 500 * time.Millisecond, Timeout: 10 * time.Second}

	// Bulk is used by the concurrent ban-check orchestrator.
	Bulk = Profile{Name: "bulk", MaxRetries: 1, BackoffBase: 250 * time.Millisecond, Timeout: 15 * time.Second}
)

// transientStatus mirrors the status_forcelist of the retry policy:
// retry on throttling and server-side failures, never on other 4xx.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client is a retrying HTTP client. Safe for concurrent use; ResetSession
// swaps the underlying transport wholesale.
type Client struct {
	profile Profile
	logger  *logrus.Logger

	mu   sync.Mutex
	http *http.Client
}

// New creates a client with the given profile.
func New(profile Profile, logger *logrus.Logger) *Client {
	return &Client{
		profile: profile,
		logger:  logger,
		http:    newHTTPClient(profile.Timeout),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	// Small pool so a reset discards little and reconnects quickly.
	transport := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Profile returns the profile this client was built with.
func (c *Client) Profile() Profile {
	return c.profile
}

// ResetSession discards pooled connections and rebuilds a fresh transport.
// Invoked by the connection manager after hard connection failures; the
// request layer never decides to reset on its own.
func (c *Client) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.http.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	c.http = newHTTPClient(c.profile.Timeout)
	c.logger.WithField("profile", c.profile.Name).Debug("HTTP session reset")
}

func (c *Client) current() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.http
}

// Do executes the request, retrying on transient status codes and
// connection-level errors. The request must have GetBody set when it
// carries a body (http.NewRequest does this for common reader types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := c.profile.BackoffBase

	for attempt := 0; attempt <= c.profile.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return nil, err
			}
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.current().Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			if !retryableNetErr(err) {
				return nil, err
			}
			lastErr = err
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"url":     req.URL.String(),
			}).Debug("Transient request failure")
			continue
		}

		if transientStatus(resp.StatusCode) && attempt < c.profile.MaxRetries {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
			resp.Body.Close()                                    //nolint:errcheck
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, req.URL.Host)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w",
		req.URL.Host, c.profile.MaxRetries+1, lastErr)
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// retryableNetErr reports whether the error is worth a retry: timeouts,
// resets and partial reads are. Caller-side context cancellation is
// handled before this is consulted.
func retryableNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
