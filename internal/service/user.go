package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lattice-im/lattice/internal/auth"
	"github.com/lattice-im/lattice/internal/crypto"
	"github.com/lattice-im/lattice/internal/id"
	"github.com/lattice-im/lattice/internal/model"
	"github.com/lattice-im/lattice/internal/repository"
)

// UserService owns account identity: registration, password verification and
// deactivation. It never exposes or logs a password or hash.
type UserService struct {
	store  *repository.Store
	engine *auth.Engine
	domain string
}

func NewUserService(store *repository.Store, engine *auth.Engine, domain string) *UserService {
	return &UserService{store: store, engine: engine, domain: domain}
}

// Register creates the account and issues its first access token.
func (s *UserService) Register(ctx context.Context, localpart, password string) (model.User, string, error) {
	if !validLocalpart(localpart) {
		return model.User{}, "", ErrInvalidLocalpart
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, "", err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           id.NewUser(localpart, s.domain),
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return model.User{}, "", ErrUserTaken
		}
		return model.User{}, "", err
	}

	token, err := s.engine.Issue(ctx, user.ID)
	if err != nil {
		return model.User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves identifier (full user ID or bare localpart) and
// verifies the password. Absent, deactivated and wrong-password cases are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (string, error) {
	userID := identifier
	if !id.IsUser(identifier) {
		userID = id.NewUser(identifier, s.domain)
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return user.ID, nil
}

// Deactivate flags the account inactive and revokes every live token in the
// same transaction, so no credential survives the account.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	return s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.DeactivateUser(ctx, userID, time.Now().UTC()); err != nil {
			return err
		}
		return tx.RevokeAccessTokensForUser(ctx, userID)
	})
}

func validLocalpart(localpart string) bool {
	if localpart == "" {
		return false
	}
	for _, r := range localpart {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-' || r == '=':
		default:
			return false
		}
	}
	return true
}
