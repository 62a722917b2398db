package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-im/lattice/internal/model"
)

type memTokenStore struct {
	mu        sync.Mutex
	rows      map[string]model.AccessToken
	nextID    int64
	createErr error
	revokes   int
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{rows: make(map[string]model.AccessToken)}
}

func (s *memTokenStore) CreateAccessToken(_ context.Context, token model.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	token.ID = s.nextID
	s.rows[token.TokenID] = token
	return nil
}

func (s *memTokenStore) GetAccessTokenByTokenID(_ context.Context, tokenID string) (model.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tokenID]
	if !ok {
		return model.AccessToken{}, pgx.ErrNoRows
	}
	return row, nil
}

func (s *memTokenStore) RevokeAccessToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokes++
	if row, ok := s.rows[tokenID]; ok {
		row.Revoked = true
		s.rows[tokenID] = row
	}
	return nil
}

func TestEngineIssueVerify(t *testing.T) {
	store := newMemTokenStore()
	engine := NewEngine("secret", "issuer", 0, store)
	ctx := context.Background()

	value, err := engine.Issue(ctx, "@carl:example.org")
	require.NoError(t, err)
	require.NotEmpty(t, value)

	identity, err := engine.Verify(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, "@carl:example.org", identity.UserID)
	assert.NotEmpty(t, identity.TokenID)
}

func TestEngineVerifyAfterRevoke(t *testing.T) {
	store := newMemTokenStore()
	engine := NewEngine("secret", "issuer", 0, store)
	ctx := context.Background()

	value, err := engine.Issue(ctx, "@carl:example.org")
	require.NoError(t, err)

	identity, err := engine.Verify(ctx, value)
	require.NoError(t, err)

	require.NoError(t, engine.Revoke(ctx, identity.TokenID))

	_, err = engine.Verify(ctx, value)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Revoking twice is a no-op success and leaves the token revoked.
	require.NoError(t, engine.Revoke(ctx, identity.TokenID))
	assert.Equal(t, 2, store.revokes)

	_, err = engine.Verify(ctx, value)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEngineVerifyUnknownToken(t *testing.T) {
	store := newMemTokenStore()
	engine := NewEngine("secret", "issuer", 0, store)
	ctx := context.Background()

	value, err := engine.Issue(ctx, "@carl:example.org")
	require.NoError(t, err)

	// A structurally valid token whose row is gone must fail the same way
	// as a revoked one.
	store.mu.Lock()
	store.rows = make(map[string]model.AccessToken)
	store.mu.Unlock()

	_, err = engine.Verify(ctx, value)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEngineVerifyTamperedToken(t *testing.T) {
	store := newMemTokenStore()
	engine := NewEngine("secret", "issuer", 0, store)
	ctx := context.Background()

	value, err := engine.Issue(ctx, "@carl:example.org")
	require.NoError(t, err)

	parts := strings.Split(value, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAA"

	_, err = engine.Verify(ctx, tampered)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = engine.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEngineVerifyForeignSignature(t *testing.T) {
	store := newMemTokenStore()
	engine := NewEngine("secret", "issuer", 0, store)
	forged, err := NewSignedToken("other-secret", "issuer", 0, "@mallory:example.org", "token-x")
	require.NoError(t, err)

	_, err = engine.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEngineIssueStorageFailure(t *testing.T) {
	store := newMemTokenStore()
	store.createErr = errors.New("pool exhausted")
	engine := NewEngine("secret", "issuer", 0, store)

	_, err := engine.Issue(context.Background(), "@carl:example.org")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
