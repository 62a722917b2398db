package model

import "time"

type User struct {
	ID           string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccessToken is the stored half of a bearer credential. ID is a database
// sequence used only for ordering and is never exposed; TokenID is the lookup
// key embedded in the signed value handed to the client. Revoked moves from
// false to true exactly once and never back.
type AccessToken struct {
	ID        int64
	TokenID   string
	UserID    string
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Room struct {
	ID        string
	UserID    string
	Public    bool
	CreatedAt time.Time
}

type RoomAlias struct {
	Alias     string
	RoomID    string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Event struct {
	ID        string
	Ordering  int64
	RoomID    string
	UserID    string
	EventType string
	StateKey  *string
	Content   []byte
	CreatedAt time.Time
}

// MembershipEvent rows are append-only; the current membership of a
// (room, user) pair is the row with the highest Ordering.
type MembershipEvent struct {
	EventID    string
	Ordering   int64
	RoomID     string
	UserID     string
	Sender     string
	Membership string
	CreatedAt  time.Time
}
