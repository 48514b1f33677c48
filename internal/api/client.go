// Package api is the client for the chat server's REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"leafchat/internal/pkg/errs"
	"leafchat/internal/pkg/logx"
)

const (
	DefaultBaseURL = "http://172.20.10.8:3001"
	DefaultTimeout = 5 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Client talks to one server. The session is carried by the cookie jar.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithJar replaces the in-memory cookie jar, e.g. with a persistent one.
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) { c.http.Jar = jar }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient swaps the underlying client. Its Jar is kept if set.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		jar := c.http.Jar
		c.http = h
		if c.http.Jar == nil {
			c.http.Jar = jar
		}
	}
}

// New returns a client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar exposes the cookie jar so the realtime dial can reuse the session.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

func validateRequest(op string, req any) error {
	if err := validate.Struct(req); err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err, op)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSONRequest(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return errs.Wrap(errs.ErrInvalidParams, err, op)
		}
		body = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err, op)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logx.Warn("request failed", "op", op, "kind", errs.KindTransport.String(), "error", err.Error())
		return errs.Wrap(errs.ErrNetwork, err, op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrNetwork, err, op)
	}
	logx.Debug("request done", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errs.NewError(errs.ErrUnauthorized, op, readResponseError(resp.StatusCode, data)).WithStatus(resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		return errs.NewError(errs.ErrPermissionDenied).WithStatus(resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return errs.NewError(errs.ErrNotFound, op).WithStatus(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errs.NewError(errs.ErrRejected, op, readResponseError(resp.StatusCode, data)).WithStatus(resp.StatusCode)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.ErrBadResponse, err, op).WithStatus(resp.StatusCode)
	}
	return nil
}

func readResponseError(status int, data []byte) string {
	var parsed statusResponse
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Message != "" || parsed.Error != "" {
			return parsed.reason()
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return fmt.Sprintf("server returned %d", status)
}

// checkSuccess turns a {success:false} body into a rejection.
func checkSuccess(op string, s statusResponse) error {
	if !s.Success {
		return errs.NewError(errs.ErrRejected, op, s.reason())
	}
	return nil
}

// IsUnauthorized reports whether err means the session is missing or invalid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, errs.NewError(errs.ErrUnauthorized))
}
