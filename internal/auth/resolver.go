package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
)

const bearerPrefix = "Bearer "

// ParseBearer extracts the token from an Authorization header value of
// the form "Bearer <token>".
func ParseBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrTokenInvalid
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrTokenInvalid
	}
	return token, nil
}

// Resolver turns an Authorization header into an Identity.
type Resolver struct {
	tokens *TokenService
	store  Store
}

func NewResolver(tokens *TokenService, store Store) *Resolver {
	return &Resolver{tokens: tokens, store: store}
}

// Resolve verifies the bearer token and loads the live account behind it.
// The account lookup is what enforces soft deletion, since tokens are not
// revoked when an account is deleted.
func (r *Resolver) Resolve(ctx context.Context, header string) (*Identity, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return nil, r.reject("malformed_header", err)
	}

	accountID, err := r.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, r.reject("expired", err)
		}
		if errors.Is(err, ErrConfiguration) {
			return nil, r.reject("configuration", err)
		}
		return nil, r.reject("invalid_token", err)
	}

	account, err := r.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			logger.Debug("token references missing account", zap.Uint("account_id", accountID))
			return nil, r.reject("account_not_found", err)
		}
		return nil, r.reject("store", err)
	}

	return NewIdentity(account), nil
}

func (r *Resolver) reject(reason string, err error) error {
	metrics.IdentityRejections.WithLabelValues(reason).Inc()
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrStoreFault) {
		logger.Error("identity resolution failed", zap.String("reason", reason), zap.Error(err))
	} else {
		logger.Debug("identity rejected", zap.String("reason", reason))
	}
	return err
}
