package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lattice-im/lattice/internal/id"
	"github.com/lattice-im/lattice/internal/model"
	"github.com/lattice-im/lattice/internal/repository"
)

// The closed set of membership states.
const (
	MembershipInvite = "invite"
	MembershipJoin   = "join"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
	MembershipKnock  = "knock"
)

func ValidMembership(state string) bool {
	switch state {
	case MembershipInvite, MembershipJoin, MembershipLeave, MembershipBan, MembershipKnock:
		return true
	}
	return false
}

// MembershipService is the append-only ledger of membership changes. Current
// state is always derived from the most recent entry for a (room, user)
// pair.
type MembershipService struct {
	store  *repository.Store
	domain string
}

func NewMembershipService(store *repository.Store, domain string) *MembershipService {
	return &MembershipService{store: store, domain: domain}
}

// Record appends a membership change after checking the transition is
// allowed for the sender. Sender and subject differ for invites and bans.
func (s *MembershipService) Record(ctx context.Context, roomID, subject, sender, state string) (model.MembershipEvent, error) {
	if !ValidMembership(state) {
		return model.MembershipEvent{}, ErrBadMembership
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MembershipEvent{}, ErrRoomNotFound
	}
	if err != nil {
		return model.MembershipEvent{}, err
	}

	subjectCurrent, err := s.currentOrNone(ctx, roomID, subject)
	if err != nil {
		return model.MembershipEvent{}, err
	}
	senderCurrent := subjectCurrent
	if sender != subject {
		senderCurrent, err = s.currentOrNone(ctx, roomID, sender)
		if err != nil {
			return model.MembershipEvent{}, err
		}
	}

	if err := allowedTransition(room, subjectCurrent, senderCurrent, subject, sender, state); err != nil {
		return model.MembershipEvent{}, err
	}

	return appendMembership(ctx, s.store, s.domain, roomID, subject, sender, state, time.Now().UTC())
}

// Current returns the membership state for the pair, or ErrMembershipNotFound
// if no event was ever recorded.
func (s *MembershipService) Current(ctx context.Context, roomID, subject string) (string, error) {
	event, err := s.store.LatestMembership(ctx, roomID, subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrMembershipNotFound
	}
	if err != nil {
		return "", err
	}
	return event.Membership, nil
}

func (s *MembershipService) currentOrNone(ctx context.Context, roomID, userID string) (string, error) {
	event, err := s.store.LatestMembership(ctx, roomID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return event.Membership, nil
}

// allowedTransition gates membership changes. This is deliberately a small
// subset of the full protocol auth rules: enough to keep the ledger
// coherent for a single server.
func allowedTransition(room model.Room, subjectCurrent, senderCurrent, subject, sender, state string) error {
	switch state {
	case MembershipJoin:
		if subject != sender {
			return ErrForbidden
		}
		if subjectCurrent == MembershipBan {
			return ErrForbidden
		}
		if room.Public || subjectCurrent == MembershipInvite || subjectCurrent == MembershipJoin || subject == room.UserID {
			return nil
		}
		return ErrForbidden
	case MembershipInvite:
		if senderCurrent != MembershipJoin {
			return ErrForbidden
		}
		if subjectCurrent == MembershipJoin || subjectCurrent == MembershipBan {
			return ErrForbidden
		}
		return nil
	case MembershipLeave:
		if subject != sender {
			return ErrForbidden
		}
		switch subjectCurrent {
		case MembershipJoin, MembershipInvite, MembershipKnock:
			return nil
		}
		return ErrForbidden
	case MembershipBan:
		if sender == subject || senderCurrent != MembershipJoin {
			return ErrForbidden
		}
		return nil
	case MembershipKnock:
		if subject != sender || room.Public {
			return ErrForbidden
		}
		switch subjectCurrent {
		case MembershipJoin, MembershipInvite, MembershipBan:
			return ErrForbidden
		}
		return nil
	}
	return ErrBadMembership
}

func appendMembership(ctx context.Context, store *repository.Store, domain, roomID, subject, sender, state string, at time.Time) (model.MembershipEvent, error) {
	return store.InsertMembershipEvent(ctx, model.MembershipEvent{
		EventID:    id.NewEvent(domain),
		RoomID:     roomID,
		UserID:     subject,
		Sender:     sender,
		Membership: state,
		CreatedAt:  at,
	})
}
