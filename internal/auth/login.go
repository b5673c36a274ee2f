package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
	"supik-server/internal/models"
)

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

// Authenticator verifies credentials against the Store and issues tokens.
type Authenticator struct {
	store  Store
	tokens *TokenService
}

func NewAuthenticator(store Store, tokens *TokenService) *Authenticator {
	return &Authenticator{store: store, tokens: tokens}
}

// Login checks username and password and issues a token. Unknown users
// and wrong passwords both return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	account, err := a.store.AccountByUsername(ctx, username)
	if errors.Is(err, ErrIdentityNotFound) {
		metrics.LoginFailures.WithLabelValues("unknown_user").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.LoginFailures.WithLabelValues("store").Inc()
		return nil, err
	}

	if !CheckPassword(account.Password, password) {
		metrics.LoginFailures.WithLabelValues("bad_password").Inc()
		return nil, ErrInvalidCredentials
	}
	if account.IsDisabled() {
		metrics.LoginFailures.WithLabelValues("disabled").Inc()
		return nil, ErrAccountDisabled
	}

	token, expiresAt, err := a.tokens.Issue(account.ID)
	if err != nil {
		logger.Error("token issue failed", zap.Uint("account_id", account.ID), zap.Error(err))
		return nil, err
	}

	metrics.TokensIssued.Inc()
	logger.Info("account logged in", zap.Uint("account_id", account.ID), zap.String("username", account.Username))
	return &Session{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}
