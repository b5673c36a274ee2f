// Package yandex is a thin client for the Yandex 360 directory API, limited
// to the organization's users (mailboxes).
package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://api360.yandex.net"

var (
	ErrNotFound      = errors.New("yandex: user not found")
	ErrUnreachable   = errors.New("yandex: api unreachable")
	ErrNotConfigured = errors.New("yandex: organization id or token is not configured")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yandex: HTTP %d: %s", e.Status, e.Message)
}

type Config struct {
	BaseURL string
	OrgID   string
	Token   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
}

// New builds a client that sends "Authorization: OAuth <token>".
func New(cfg Config) *Client {
	return newClient(cfg, http.DefaultTransport)
}

// NewForTesting sends requests through base instead of the default transport.
func NewForTesting(cfg Config, base http.RoundTripper) *Client {
	return newClient(cfg, base)
}

func newClient(cfg Config, base http.RoundTripper) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "OAuth"})
	return &Client{
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: source, Base: base},
			Timeout:   cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		orgID:   cfg.OrgID,
	}
}

// Configured reports whether the client has what it needs to call the API.
func (c *Client) Configured() bool {
	return c.orgID != ""
}

func (c *Client) usersPath() string {
	return "/directory/v1/org/" + url.PathEscape(c.orgID) + "/users"
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
