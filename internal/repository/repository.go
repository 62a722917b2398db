package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lattice-im/lattice/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method works standalone or inside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db   querier
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithTx runs fn against a store bound to a single transaction, committing
// on success and rolling back on any returned error. A request cancelled
// mid-transaction rolls back through the context.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&Store{db: tx, pool: s.pool}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is the store rejecting a duplicate
// key, e.g. two transactions claiming the same alias.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.PasswordHash, user.Active, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.db.QueryRow(ctx, `
		SELECT id, password_hash, active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.PasswordHash, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// DeactivateUser flags the account inactive. Rows are never deleted.
func (s *Store) DeactivateUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET active = FALSE, updated_at = $1 WHERE id = $2
	`, at, userID)
	return err
}

func (s *Store) CreateAccessToken(ctx context.Context, token model.AccessToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO access_tokens (token_id, user_id, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.TokenID, token.UserID, token.Revoked, token.CreatedAt, token.UpdatedAt)
	return err
}

func (s *Store) GetAccessTokenByTokenID(ctx context.Context, tokenID string) (model.AccessToken, error) {
	var token model.AccessToken
	row := s.db.QueryRow(ctx, `
		SELECT id, token_id, user_id, revoked, created_at, updated_at
		FROM access_tokens
		WHERE token_id = $1
	`, tokenID)
	err := row.Scan(&token.ID, &token.TokenID, &token.UserID, &token.Revoked, &token.CreatedAt, &token.UpdatedAt)
	return token, err
}

// RevokeAccessToken is idempotent: re-revoking matches zero-or-one rows and
// leaves the revoked flag true either way.
func (s *Store) RevokeAccessToken(ctx context.Context, tokenID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE access_tokens SET revoked = TRUE, updated_at = NOW() WHERE token_id = $1
	`, tokenID)
	return err
}

func (s *Store) RevokeAccessTokensForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE access_tokens SET revoked = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND revoked = FALSE
	`, userID)
	return err
}

func (s *Store) InsertRoom(ctx context.Context, room model.Room) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rooms (id, user_id, public, created_at)
		VALUES ($1, $2, $3, $4)
	`, room.ID, room.UserID, room.Public, room.CreatedAt)
	return err
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	var room model.Room
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, public, created_at
		FROM rooms
		WHERE id = $1
	`, roomID)
	err := row.Scan(&room.ID, &room.UserID, &room.Public, &room.CreatedAt)
	return room, err
}

func (s *Store) InsertEvent(ctx context.Context, event model.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events (id, room_id, user_id, event_type, state_key, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.RoomID, event.UserID, event.EventType, event.StateKey, event.Content, event.CreatedAt)
	return err
}

func (s *Store) InsertRoomAlias(ctx context.Context, alias model.RoomAlias) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_aliases (alias, room_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, alias.Alias, alias.RoomID, alias.UserID, alias.CreatedAt, alias.UpdatedAt)
	return err
}

func (s *Store) GetRoomAlias(ctx context.Context, alias string) (model.RoomAlias, error) {
	var row model.RoomAlias
	err := s.db.QueryRow(ctx, `
		SELECT alias, room_id, user_id, created_at, updated_at
		FROM room_aliases
		WHERE alias = $1
	`, alias).Scan(&row.Alias, &row.RoomID, &row.UserID, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

// InsertMembershipEvent appends to the ledger and returns the event with its
// assigned sequence number. Prior rows are never touched.
func (s *Store) InsertMembershipEvent(ctx context.Context, event model.MembershipEvent) (model.MembershipEvent, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO room_memberships (event_id, room_id, user_id, sender, membership, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ordering
	`, event.EventID, event.RoomID, event.UserID, event.Sender, event.Membership, event.CreatedAt).Scan(&event.Ordering)
	return event, err
}

// LatestMembership resolves the current state of a (room, user) pair by the
// ledger's sequence, not by timestamp: created_at can tie.
func (s *Store) LatestMembership(ctx context.Context, roomID, userID string) (model.MembershipEvent, error) {
	var event model.MembershipEvent
	row := s.db.QueryRow(ctx, `
		SELECT event_id, ordering, room_id, user_id, sender, membership, created_at
		FROM room_memberships
		WHERE room_id = $1 AND user_id = $2
		ORDER BY ordering DESC
		LIMIT 1
	`, roomID, userID)
	err := row.Scan(&event.EventID, &event.Ordering, &event.RoomID, &event.UserID, &event.Sender, &event.Membership, &event.CreatedAt)
	return event, err
}
