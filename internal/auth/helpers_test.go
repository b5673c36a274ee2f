package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	database "supik-server/internal/db"
	"supik-server/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	client, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client.DB
}

func createAccount(t *testing.T, db *gorm.DB, username, password string, admin bool) *models.Account {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	account := &models.Account{Username: username, Password: hash}
	if admin {
		account.Admin = 1
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func createGroup(t *testing.T, db *gorm.DB, group models.Group) *models.Group {
	t.Helper()
	require.NoError(t, db.Create(&group).Error)
	return &group
}

func addMember(t *testing.T, db *gorm.DB, account *models.Account, group *models.Group) {
	t.Helper()
	require.NoError(t, db.Create(&models.AccountGroup{AccountID: account.ID, GroupID: group.ID}).Error)
}

func createRouter(t *testing.T, db *gorm.DB, name string) *models.Router {
	t.Helper()
	router := &models.Router{Name: name, Host: name + ".lan", Port: 443}
	require.NoError(t, db.Create(router).Error)
	return router
}

func identityFor(t *testing.T, db *gorm.DB, account *models.Account) *Identity {
	t.Helper()
	loaded, err := NewGormStore(db).AccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	return NewIdentity(loaded)
}

// stubStore serves canned results for the acl and resolver tests that do
// not need a database.
type stubStore struct {
	accounts map[uint]*models.Account
	acls     map[uint]*RouterACL
	err      error
}

func (s *stubStore) AccountByID(_ context.Context, id uint) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return nil, ErrIdentityNotFound
}

func (s *stubStore) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, a := range s.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (s *stubStore) RouterACL(_ context.Context, routerID uint) (*RouterACL, error) {
	if s.err != nil {
		return nil, s.err
	}
	if acl, ok := s.acls[routerID]; ok {
		return acl, nil
	}
	return nil, ErrResourceNotFound
}
