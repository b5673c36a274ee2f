package yandex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewForTesting(Config{BaseURL: srv.URL, OrgID: "42", Token: "y0_token"}, srv.Client().Transport)
}

func TestListUsersSendsOAuthHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OAuth y0_token", r.Header.Get("Authorization"))
		assert.Equal(t, "/directory/v1/org/42/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("perPage"))
		_ = json.NewEncoder(w).Encode(UserPage{
			Users: []User{{ID: "1130000000000001", Nickname: "ivanov", Name: Name{First: "Ivan", Last: "Ivanov"}, IsEnabled: true}},
			Page:  2, Pages: 2, PerPage: 100, Total: 101,
		})
	})

	page, err := client.ListUsers(context.Background(), 2, 100)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "ivanov", page.Users[0].Nickname)
	assert.Equal(t, 101, page.Total)
}

func TestCreateAndUpdateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body NewUser
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "petrov", body.Nickname)
			_ = json.NewEncoder(w).Encode(User{ID: "7", Nickname: body.Nickname, Name: body.Name, IsEnabled: true})
		case http.MethodPatch:
			assert.Equal(t, "/directory/v1/org/42/users/7", r.URL.Path)
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"isEnabled": false}, body)
			_ = json.NewEncoder(w).Encode(User{ID: "7", Nickname: "petrov"})
		}
	})
	ctx := context.Background()

	created, err := client.CreateUser(ctx, NewUser{Nickname: "petrov", Name: Name{First: "Petr"}, Password: "Secret123!"})
	require.NoError(t, err)
	assert.Equal(t, "7", created.ID)

	disabled := false
	updated, err := client.UpdateUser(ctx, "7", UserPatch{IsEnabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.IsEnabled)
}

func TestErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/directory/v1/org/42/users/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":7,"message":"permission denied"}`))
	})
	ctx := context.Background()

	_, err := client.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = client.DeleteUser(ctx, "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "permission denied", apiErr.Message)
}

func TestNotConfigured(t *testing.T) {
	client := New(Config{Token: "t"})
	assert.False(t, client.Configured())
	_, err := client.ListUsers(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := NewForTesting(Config{BaseURL: srv.URL, OrgID: "42", Token: "t"}, srv.Client().Transport)
	srv.Close()

	_, err := client.ListUsers(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrUnreachable)
}
