package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"supik-server/internal/models"
	"supik-server/internal/routeros"
	"supik-server/internal/yandex"
)

// remoteCalls records "METHOD path" for every request a fake upstream saw.
type remoteCalls struct {
	mu    sync.Mutex
	calls []string
}

func (r *remoteCalls) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
}

func (r *remoteCalls) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if len(c) > len(method) && c[:len(method)+1] == method+" " {
			n++
		}
	}
	return n
}

func (r *remoteCalls) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// failWrites makes every create or update of table fail before it reaches
// the database.
func failWrites(t *testing.T, db *gorm.DB, op, table string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			_ = tx.AddError(errors.New("disk full"))
		}
	}
	name := "test:fail_" + op + "_" + table
	switch op {
	case "create":
		require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, fail))
	case "update":
		require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, fail))
	default:
		t.Fatalf("unknown op %q", op)
	}
}

func newFakeDirectory(t *testing.T, patchStatus int) (*yandex.Client, *remoteCalls) {
	t.Helper()
	calls := &remoteCalls{}
	var next int
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r)
		switch r.Method {
		case http.MethodPost:
			var u yandex.NewUser
			_ = json.NewDecoder(r.Body).Decode(&u)
			calls.mu.Lock()
			next++
			id := strconv.Itoa(100 + next)
			calls.mu.Unlock()
			_ = json.NewEncoder(w).Encode(yandex.User{ID: id, Nickname: u.Nickname, Email: u.Nickname + "@example.org"})
		case http.MethodPatch:
			if patchStatus != http.StatusOK {
				w.WriteHeader(patchStatus)
				_, _ = w.Write([]byte(`{"message":"backend unavailable"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(yandex.User{})
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(fake.Close)
	return yandex.NewForTesting(yandex.Config{BaseURL: fake.URL, OrgID: "1", Token: "token"}, fake.Client().Transport), calls
}

func mailEditor(t *testing.T, env *testEnv) string {
	t.Helper()
	g := env.group(models.Group{Name: "mail", AccessMail: models.AccessEditor})
	env.account("hank", "pw", false, g)
	return env.login("hank", "pw")
}

func TestMailRecreateOfDeletedNickname(t *testing.T) {
	client, calls := newFakeDirectory(t, http.StatusOK)
	env := newTestEnv(t, Deps{Yandex: client})
	token := mailEditor(t, env)

	w := env.request(http.MethodPost, "/api/v1/mails", token, gin.H{"nickname": "ivanov", "password": "Secret1!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var mail models.Mail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mail))

	w = env.request(http.MethodDelete, fmt.Sprintf("/api/v1/mails/%d", mail.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.request(http.MethodPost, "/api/v1/mails", token, gin.H{"nickname": "ivanov", "password": "Secret1!"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, calls.count(http.MethodPost), "directory must not be asked to create a nickname held by a deleted row")
	assert.Equal(t, 1, calls.count(http.MethodDelete))
}

func TestMailCreateUndoneWhenInsertFails(t *testing.T) {
	client, calls := newFakeDirectory(t, http.StatusOK)
	env := newTestEnv(t, Deps{Yandex: client})
	token := mailEditor(t, env)
	failWrites(t, env.db, "create", "mails")

	w := env.request(http.MethodPost, "/api/v1/mails", token, gin.H{"nickname": "petrov", "password": "Secret1!"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, []string{
		"POST /directory/v1/org/1/users",
		"DELETE /directory/v1/org/1/users/101",
	}, calls.list())

	var n int64
	require.NoError(t, env.db.Unscoped().Model(&models.Mail{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestMailUpdateRolledBackWhenDirectoryFails(t *testing.T) {
	client, _ := newFakeDirectory(t, http.StatusInternalServerError)
	env := newTestEnv(t, Deps{Yandex: client})
	token := mailEditor(t, env)

	mail := models.Mail{Nickname: "sidorov", Position: "clerk", YandexID: "55"}
	require.NoError(t, env.db.Create(&mail).Error)

	w := env.request(http.MethodPut, fmt.Sprintf("/api/v1/mails/%d", mail.ID), token, gin.H{"position": "manager"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var stored models.Mail
	require.NoError(t, env.db.First(&stored, mail.ID).Error)
	assert.Equal(t, "clerk", stored.Position)
}

func TestMailUpdateSkipsDirectoryWhenSaveFails(t *testing.T) {
	client, calls := newFakeDirectory(t, http.StatusOK)
	env := newTestEnv(t, Deps{Yandex: client})
	token := mailEditor(t, env)

	mail := models.Mail{Nickname: "sidorov", YandexID: "55"}
	require.NoError(t, env.db.Create(&mail).Error)
	failWrites(t, env.db, "update", "mails")

	w := env.request(http.MethodPut, fmt.Sprintf("/api/v1/mails/%d", mail.ID), token, gin.H{"position": "manager"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, calls.count(http.MethodPatch))
}

type vpnFixture struct {
	env    *testEnv
	calls  *remoteCalls
	token  string
	router *models.Router
}

func newVpnFixture(t *testing.T) *vpnFixture {
	t.Helper()
	calls := &remoteCalls{}
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r)
		switch r.Method {
		case http.MethodPut:
			var s routeros.Secret
			_ = json.NewDecoder(r.Body).Decode(&s)
			s.ID = "*1"
			_ = json.NewEncoder(w).Encode(s)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode(routeros.Secret{})
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

	router := &models.Router{Name: "gw", Host: u.Hostname(), Port: port, Username: "api", Password: "pw"}
	require.NoError(t, env.db.Create(router).Error)
	require.NoError(t, env.db.Create(&models.RouterGroupEditor{RouterID: router.ID, GroupID: g.ID}).Error)

	return &vpnFixture{env: env, calls: calls, token: env.login("gina", "pw"), router: router}
}

func (f *vpnFixture) path(suffix string) string {
	return fmt.Sprintf("/api/v1/routers/%d/vpns%s", f.router.ID, suffix)
}

func TestVpnCreateUndoneWhenInsertFails(t *testing.T) {
	f := newVpnFixture(t)
	failWrites(t, f.env.db, "create", "vpn_accounts")

	w := f.env.request(http.MethodPost, f.path(""), f.token, gin.H{"name": "ivanov", "password": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, []string{
		"PUT /rest/ppp/secret",
		"DELETE /rest/ppp/secret/*1",
	}, f.calls.list())
}

func TestVpnUpdateSkipsRouterWhenSaveFails(t *testing.T) {
	f := newVpnFixture(t)

	w := f.env.request(http.MethodPost, f.path(""), f.token, gin.H{"name": "ivanov", "password": "x"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vpn models.VpnAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vpn))

	failWrites(t, f.env.db, "update", "vpn_accounts")

	w = f.env.request(http.MethodPut, f.path(fmt.Sprintf("/%d", vpn.ID)), f.token, gin.H{"profile": "office"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, f.calls.count(http.MethodPatch))
}

func TestVpnUpdateRolledBackWhenRouterFails(t *testing.T) {
	f := newVpnFixture(t)

	vpn := models.VpnAccount{RouterID: f.router.ID, Name: "ivanov", Profile: "default", RouterosID: "*9"}
	require.NoError(t, f.env.db.Create(&vpn).Error)

	// Nothing listens on port 1, so the router call fails.
	require.NoError(t, f.env.db.Model(f.router).Update("port", 1).Error)

	w := f.env.request(http.MethodPut, f.path(fmt.Sprintf("/%d", vpn.ID)), f.token, gin.H{"profile": "office"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var stored models.VpnAccount
	require.NoError(t, f.env.db.First(&stored, vpn.ID).Error)
	assert.Equal(t, "default", stored.Profile)
}
