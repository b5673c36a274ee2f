package routeros

import (
	"context"
	"net/url"
)

const secretPath = "/ppp/secret"

// Secret is a PPP secret. RouterOS encodes every value as a string,
// booleans included.
type Secret struct {
	ID            string `json:".id,omitempty"`
	Name          string `json:"name,omitempty"`
	Password      string `json:"password,omitempty"`
	Profile       string `json:"profile,omitempty"`
	Service       string `json:"service,omitempty"`
	RemoteAddress string `json:"remote-address,omitempty"`
	Comment       string `json:"comment,omitempty"`
	Disabled      string `json:"disabled,omitempty"`
}

// IsDisabled reports the parsed Disabled flag.
func (s *Secret) IsDisabled() bool {
	return s.Disabled == "true" || s.Disabled == "yes"
}

// FormatBool renders b the way RouterOS expects it.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (c *Client) ListSecrets(ctx context.Context) ([]Secret, error) {
	var secrets []Secret
	if err := c.do(ctx, "GET", secretPath, nil, &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

func (c *Client) GetSecret(ctx context.Context, id string) (*Secret, error) {
	var secret Secret
	if err := c.do(ctx, "GET", secretPath+"/"+url.PathEscape(id), nil, &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

// AddSecret creates s and returns it as stored by the router, including
// the assigned ".id".
func (c *Client) AddSecret(ctx context.Context, s Secret) (*Secret, error) {
	s.ID = ""
	var created Secret
	if err := c.do(ctx, "PUT", secretPath, s, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSecret patches the non-empty fields of s on item id.
func (c *Client) UpdateSecret(ctx context.Context, id string, s Secret) (*Secret, error) {
	s.ID = ""
	var updated Secret
	if err := c.do(ctx, "PATCH", secretPath+"/"+url.PathEscape(id), s, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) RemoveSecret(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", secretPath+"/"+url.PathEscape(id), nil, nil)
}
