package yandex

import (
	"context"
	"net/url"
)

type Name struct {
	First  string `json:"first,omitempty"`
	Last   string `json:"last,omitempty"`
	Middle string `json:"middle,omitempty"`
}

// User is a directory user; every user owns one mailbox.
type User struct {
	ID          string `json:"id,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        Name   `json:"name"`
	Position    string `json:"position,omitempty"`
	IsEnabled   bool   `json:"isEnabled"`
	IsDismissed bool   `json:"isDismissed"`
}

// NewUser is the body of a create request.
type NewUser struct {
	Nickname     string `json:"nickname"`
	Name         Name   `json:"name"`
	Password     string `json:"password"`
	Position     string `json:"position,omitempty"`
	DepartmentID int    `json:"departmentId"`
}

// UserPatch changes only the fields that are set.
type UserPatch struct {
	Name      *Name   `json:"name,omitempty"`
	Position  *string `json:"position,omitempty"`
	Password  *string `json:"password,omitempty"`
	IsEnabled *bool   `json:"isEnabled,omitempty"`
}

type UserPage struct {
	Users   []User `json:"users"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	PerPage int    `json:"perPage"`
	Total   int    `json:"total"`
}

// ListUsers returns one page of users. Pages are numbered from 1.
func (c *Client) ListUsers(ctx context.Context, page, perPage int) (*UserPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", itoa(page))
	}
	if perPage > 0 {
		q.Set("perPage", itoa(perPage))
	}
	var out UserPage
	if err := c.do(ctx, "GET", c.usersPath(), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, "GET", c.usersPath()+"/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	var out User
	if err := c.do(ctx, "POST", c.usersPath(), nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, p UserPatch) (*User, error) {
	var out User
	if err := c.do(ctx, "PATCH", c.usersPath()+"/"+url.PathEscape(id), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", c.usersPath()+"/"+url.PathEscape(id), nil, nil, nil)
}
