package service

import "errors"

// Sentinel errors the HTTP layer maps onto response codes. Anything else
// coming out of a service is a storage failure and stays server-side.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidLocalpart   = errors.New("invalid localpart")
	ErrUserTaken          = errors.New("user id already taken")
	ErrAliasTaken         = errors.New("room alias already taken")
	ErrAliasNotFound      = errors.New("room alias not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("no membership recorded")
	ErrBadMembership      = errors.New("unknown membership state")
	ErrForbidden          = errors.New("forbidden")
)
