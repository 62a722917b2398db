// Package auth mints, verifies and revokes the bearer tokens that gate every
// authenticated request.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lattice-im/lattice/internal/model"
)

// ErrUnauthenticated covers every credential failure: malformed or forged
// values, unknown token IDs, revoked tokens, expired tokens. Callers are not
// told which case occurred.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenStore persists one row per issued token, looked up by the token ID
// embedded in the signed value. Absent rows surface as pgx.ErrNoRows.
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token model.AccessToken) error
	GetAccessTokenByTokenID(ctx context.Context, tokenID string) (model.AccessToken, error)
	RevokeAccessToken(ctx context.Context, tokenID string) error
}

// Identity is the outcome of a successful verification: the user the token
// is bound to and the token's own ID, kept so the handler can revoke it.
type Identity struct {
	UserID  string
	TokenID string
}

type Engine struct {
	secret string
	issuer string
	ttl    time.Duration
	store  TokenStore
}

func NewEngine(secret, issuer string, ttl time.Duration, store TokenStore) *Engine {
	return &Engine{secret: secret, issuer: issuer, ttl: ttl, store: store}
}

// Issue mints a signed token bound to userID and records it as unrevoked.
func (e *Engine) Issue(ctx context.Context, userID string) (string, error) {
	tokenID := uuid.NewString()
	value, err := NewSignedToken(e.secret, e.issuer, e.ttl, userID, tokenID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	token := model.AccessToken{
		TokenID:   tokenID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateAccessToken(ctx, token); err != nil {
		return "", err
	}
	return value, nil
}

// Verify runs two phases: the cryptographic check of the presented value,
// then a live lookup of the stored row. A valid signature is necessary but
// not sufficient; revocation has to bite without rotating the signing key,
// so the row is the single source of truth and no result is cached.
func (e *Engine) Verify(ctx context.Context, value string) (Identity, error) {
	claims, err := ParseSignedToken(e.secret, value)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	row, err := e.store.GetAccessTokenByTokenID(ctx, claims.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, err
	}
	if row.Revoked {
		return Identity{}, ErrUnauthenticated
	}

	// The stored binding is authoritative; the signature only proves the
	// value came from this server.
	return Identity{UserID: row.UserID, TokenID: row.TokenID}, nil
}

// Revoke marks the token's row revoked. Revoking an already-revoked token is
// a no-op success.
func (e *Engine) Revoke(ctx context.Context, tokenID string) error {
	return e.store.RevokeAccessToken(ctx, tokenID)
}
