// Package routeros is a thin client for the RouterOS v7 REST API, limited
// to the PPP secrets used for VPN accounts.
package routeros

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"supik-server/internal/models"
)

var (
	// ErrNotFound is returned when the router answers 404 for an item.
	ErrNotFound = errors.New("routeros: item not found")
	// ErrUnreachable wraps transport failures talking to the router.
	ErrUnreachable = errors.New("routeros: router unreachable")
)

// APIError is a non-2xx answer from the router.
type APIError struct {
	Status  int    `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("routeros: HTTP %d: %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("routeros: HTTP %d: %s", e.Status, e.Message)
}

// Config holds connection defaults shared by every router.
type Config struct {
	Scheme   string
	Port     int
	Timeout  time.Duration
	Insecure bool
}

// Dialer builds per-router clients that share one HTTP transport.
type Dialer struct {
	cfg        Config
	httpClient *http.Client
}

func NewDialer(cfg Config) *Dialer {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		// Routers usually serve self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Dialer{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
}

// NewDialerForTesting uses httpClient as is, e.g. one from httptest.Server.
func NewDialerForTesting(cfg Config, httpClient *http.Client) *Dialer {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	return &Dialer{cfg: cfg, httpClient: httpClient}
}

// Client talks to one router.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
}

// For returns a client for router. The router's own port wins over the
// configured default.
func (d *Dialer) For(router *models.Router) *Client {
	port := router.Port
	if port == 0 {
		port = d.cfg.Port
	}
	host := router.Host
	if port != 0 {
		host = net.JoinHostPort(router.Host, strconv.Itoa(port))
	}
	return &Client{
		httpClient: d.httpClient,
		baseURL:    (&url.URL{Scheme: d.cfg.Scheme, Host: host, Path: "/rest"}).String(),
		username:   router.Username,
		password:   router.Password,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
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
		apiErr := &APIError{Status: resp.StatusCode}
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
