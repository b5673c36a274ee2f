package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"supik-server/internal/auth"
	"supik-server/internal/config"
	database "supik-server/internal/db"
	"supik-server/internal/models"
	"supik-server/internal/routeros"
	"supik-server/internal/yandex"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
}

func newTestEnv(t *testing.T, deps Deps) *testEnv {
	t.Helper()
	client, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{}
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.TokenLifetime = time.Hour
	cfg.Server.Port = ":0"

	srv := New(cfg, client, deps)
	return &testEnv{t: t, db: client.DB, handler: srv.Handler()}
}

func (e *testEnv) account(username, password string, admin bool, groups ...*models.Group) *models.Account {
	e.t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(e.t, err)
	a := &models.Account{Username: username, Password: hash, Admin: 0}
	if admin {
		a.Admin = 1
	}
	require.NoError(e.t, e.db.Create(a).Error)
	for _, g := range groups {
		require.NoError(e.t, e.db.Create(&models.AccountGroup{AccountID: a.ID, GroupID: g.ID}).Error)
	}
	return a
}

func (e *testEnv) group(g models.Group) *models.Group {
	e.t.Helper()
	require.NoError(e.t, e.db.Create(&g).Error)
	return &g
}

func (e *testEnv) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(username, password string) string {
	e.t.Helper()
	w := e.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(e.t, out.Token)
	return out.Token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Deps{})
	w := env.request(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("alice", "right", false)

	w := env.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", w.Body.String())

	w = env.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", w.Body.String())

	w = env.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username and password are required", w.Body.String())
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t, Deps{})
	a := env.account("ivan", "pw", false)
	require.NoError(t, env.db.Model(a).Update("disabled", 1).Error)

	w := env.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ivan", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", w.Body.String())
}

func TestAdminPassesEveryGate(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("root", "pw", true)
	token := env.login("root", "pw")

	for _, path := range []string{
		"/api/v1/accounts", "/api/v1/groups", "/api/v1/routers",
		"/api/v1/users", "/api/v1/departments", "/api/v1/mails", "/api/v1/logs",
	} {
		w := env.request(http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := env.request(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin":true`)
}

func TestAccountWithoutGroupsIsDenied(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("bob", "pw", false)
	token := env.login("bob", "pw")

	w := env.request(http.MethodGet, "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", w.Body.String())

	w = env.request(http.MethodGet, "/api/v1/accounts", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestViewerGroupReadsButCannotWrite(t *testing.T) {
	env := newTestEnv(t, Deps{})
	g := env.group(models.Group{Name: "helpdesk", AccessUser: models.AccessViewer})
	env.account("carol", "pw", false, g)
	token := env.login("carol", "pw")

	w := env.request(http.MethodGet, "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodPost, "/api/v1/users", token, gin.H{"name": "Ivan"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterACLViewerOnly(t *testing.T) {
	env := newTestEnv(t, Deps{})
	g5 := env.group(models.Group{Name: "g5", AccessRouter: models.AccessEditor})
	env.account("dave", "pw", false, g5)
	router := &models.Router{Name: "r", Host: "10.0.0.1"}
	require.NoError(t, env.db.Create(router).Error)
	require.NoError(t, env.db.Create(&models.RouterGroupViewer{RouterID: router.ID, GroupID: g5.ID}).Error)
	token := env.login("dave", "pw")
	path := fmt.Sprintf("/api/v1/routers/%d", router.ID)

	w := env.request(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodPut, path, token, gin.H{"title": "edge"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.request(http.MethodGet, "/api/v1/routers/9999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", w.Body.String())
}

func TestDeletedAccountTokenStopsWorking(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("root", "pw", true)
	leaver := env.account("leaver", "pw", true)

	admin := env.login("root", "pw")
	token := env.login("leaver", "pw")

	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/v1/auth/me", token, nil).Code)

	w := env.request(http.MethodDelete, fmt.Sprintf("/api/v1/accounts/%d", leaver.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/v1/auth/me", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/v1/users", token, nil).Code)
}

func TestMissingSecretIsServerError(t *testing.T) {
	client, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	handler := New(&config.Config{}, client, Deps{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGroupMembershipFlow(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("root", "pw", true)
	member := env.account("erin", "pw", false)
	admin := env.login("root", "pw")
	token := env.login("erin", "pw")

	w := env.request(http.MethodPost, "/api/v1/groups", admin, gin.H{"name": "dept-editors", "access_department": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var group models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))

	w = env.request(http.MethodPost, "/api/v1/groups", admin, gin.H{"name": "bad", "access_mail": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(http.MethodPost, "/api/v1/groups", admin, gin.H{"name": "dept-editors"})
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusForbidden, env.request(http.MethodPost, "/api/v1/departments", token, gin.H{"name": "IT"}).Code)

	w = env.request(http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/members", group.ID), admin, gin.H{"account_id": member.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Membership applies to the next request with the same token.
	w = env.request(http.MethodPost, "/api/v1/departments", token, gin.H{"name": "IT"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.request(http.MethodDelete, fmt.Sprintf("/api/v1/groups/%d/members/%d", group.ID, member.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/v1/departments", token, nil).Code)
}

func TestRouterACLManagement(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("root", "pw", true)
	ops := env.group(models.Group{Name: "ops", AccessRouter: models.AccessEditor})
	env.account("frank", "pw", false, ops)
	admin := env.login("root", "pw")
	token := env.login("frank", "pw")

	w := env.request(http.MethodPost, "/api/v1/routers", token, gin.H{"name": "core", "host": "10.0.0.1", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")
	var router models.Router
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &router))
	path := fmt.Sprintf("/api/v1/routers/%d", router.ID)

	// Creating a router does not put the creator on its ACL.
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, path, token, nil).Code)

	// ACL management is admin only.
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodPut, path+"/acl", token, gin.H{"viewers": []uint{ops.ID}}).Code)

	w = env.request(http.MethodPut, path+"/acl", admin, gin.H{"viewers": []uint{}, "editors": []uint{ops.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Editor-only grant: writes pass, reads do not.
	assert.Equal(t, http.StatusOK, env.request(http.MethodPut, path, token, gin.H{"title": "Core"}).Code)
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, path, token, nil).Code)

	w = env.request(http.MethodPut, path+"/acl", admin, gin.H{"viewers": []uint{ops.ID}, "editors": []uint{ops.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, path, token, nil).Code)

	w = env.request(http.MethodGet, path+"/acl", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"viewers":[%d],"editors":[%d]}`, ops.ID, ops.ID), w.Body.String())

	w = env.request(http.MethodPut, path+"/acl", admin, gin.H{"viewers": []uint{4242}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Soft-deleted router: 404 for everyone with groups.
	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, path, token, nil).Code)
}

func TestVpnLifecycleAgainstRouter(t *testing.T) {
	var secrets = map[string]routeros.Secret{}
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var s routeros.Secret
			_ = json.NewDecoder(r.Body).Decode(&s)
			s.ID = "*" + strconv.Itoa(len(secrets)+1)
			secrets[s.ID] = s
			_ = json.NewEncoder(w).Encode(s)
		case http.MethodPatch:
			_ = json.NewEncoder(w).Encode(routeros.Secret{})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			list := []routeros.Secret{}
			for _, s := range secrets {
				list = append(list, s)
			}
			_ = json.NewEncoder(w).Encode(list)
		}
	}))
	t.Cleanup(fake.Close)
	u, err := url.Parse(fake.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	env := newTestEnv(t, Deps{RouterOS: routeros.NewDialerForTesting(routeros.Config{}, fake.Client())})
	g := env.group(models.Group{Name: "vpn-admins"})
	env.account("gina", "pw", false, g)
	token := env.login("gina", "pw")

	router := &models.Router{Name: "gw", Host: u.Hostname(), Port: port, Username: "api", Password: "pw"}
	require.NoError(t, env.db.Create(router).Error)
	require.NoError(t, env.db.Create(&models.RouterGroupViewer{RouterID: router.ID, GroupID: g.ID}).Error)
	base := fmt.Sprintf("/api/v1/routers/%d/vpns", router.ID)

	// Viewer only: cannot create.
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodPost, base, token, gin.H{"name": "ivanov", "password": "x"}).Code)

	require.NoError(t, env.db.Create(&models.RouterGroupEditor{RouterID: router.ID, GroupID: g.ID}).Error)

	w := env.request(http.MethodPost, base, token, gin.H{"name": "ivanov", "password": "x", "profile": "vpn"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vpn models.VpnAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vpn))
	assert.Equal(t, "*1", vpn.RouterosID)

	w = env.request(http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = env.request(http.MethodGet, fmt.Sprintf("/api/v1/routers/%d/secrets", router.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ivanov")
	assert.NotContains(t, w.Body.String(), `"password"`)

	w = env.request(http.MethodPut, fmt.Sprintf("%s/%d", base, vpn.ID), token, gin.H{"disabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.request(http.MethodDelete, fmt.Sprintf("%s/%d", base, vpn.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	fake.Close()
	w = env.request(http.MethodPost, base, token, gin.H{"name": "petrov", "password": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMailsAgainstDirectory(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OAuth token", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			var u yandex.NewUser
			_ = json.NewDecoder(r.Body).Decode(&u)
			_ = json.NewEncoder(w).Encode(yandex.User{ID: "113", Nickname: u.Nickname, Email: u.Nickname + "@example.org"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		default:
			_ = json.NewEncoder(w).Encode(yandex.User{ID: "113"})
		}
	}))
	t.Cleanup(fake.Close)

	client := yandex.NewForTesting(yandex.Config{BaseURL: fake.URL, OrgID: "1", Token: "token"}, fake.Client().Transport)
	env := newTestEnv(t, Deps{Yandex: client})
	g := env.group(models.Group{Name: "mail", AccessMail: models.AccessEditor})
	env.account("hank", "pw", false, g)
	token := env.login("hank", "pw")

	w := env.request(http.MethodPost, "/api/v1/mails", token, gin.H{"nickname": "ivanov", "password": "Secret1!", "name_first": "Ivan"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var mail models.Mail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mail))
	assert.Equal(t, "113", mail.YandexID)
	assert.Equal(t, "ivanov@example.org", mail.Email)

	w = env.request(http.MethodPut, fmt.Sprintf("/api/v1/mails/%d", mail.ID), token, gin.H{"position": "engineer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.request(http.MethodDelete, fmt.Sprintf("/api/v1/mails/%d", mail.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.request(http.MethodGet, "/api/v1/mails", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestMutationsAreAudited(t *testing.T) {
	env := newTestEnv(t, Deps{})
	root := env.account("root", "pw", true)
	admin := env.login("root", "pw")

	w := env.request(http.MethodPost, "/api/v1/departments", admin, gin.H{"name": "Sales"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(http.MethodGet, "/api/v1/logs?entity=department", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Data  []models.Log `json:"data"`
		Total int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.EqualValues(t, 1, out.Total)
	assert.Equal(t, "create", out.Data[0].Action)
	require.NotNil(t, out.Data[0].AccountID)
	assert.Equal(t, root.ID, *out.Data[0].AccountID)

	w = env.request(http.MethodGet, "/api/v1/logs?action=login", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestListFiltersAndPaging(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.account("root", "pw", true)
	admin := env.login("root", "pw")

	for _, name := range []string{"Accounting", "Logistics", "Legal"} {
		require.Equal(t, http.StatusCreated, env.request(http.MethodPost, "/api/v1/departments", admin, gin.H{"name": name}).Code)
	}

	w := env.request(http.MethodGet, "/api/v1/departments?name=L", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)

	w = env.request(http.MethodGet, "/api/v1/departments?limit=1&offset=1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Data  []models.Department `json:"data"`
		Total int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.EqualValues(t, 3, out.Total)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "Legal", out.Data[0].Name)
}
