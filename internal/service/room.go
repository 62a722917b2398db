package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lattice-im/lattice/internal/id"
	"github.com/lattice-im/lattice/internal/model"
	"github.com/lattice-im/lattice/internal/repository"
)

// Preset is a named bundle of initial room state.
type Preset string

const (
	PresetPublicChat         Preset = "public_chat"
	PresetPrivateChat        Preset = "private_chat"
	PresetTrustedPrivateChat Preset = "trusted_private_chat"
)

func (p Preset) Valid() bool {
	switch p {
	case PresetPublicChat, PresetPrivateChat, PresetTrustedPrivateChat:
		return true
	}
	return false
}

func (p Preset) joinRule() string {
	if p == PresetPublicChat {
		return "public"
	}
	return "invite"
}

func (p Preset) historyVisibility() string {
	if p == PresetTrustedPrivateChat {
		return "invited"
	}
	return "shared"
}

// DefaultPreset is used when the request names none: public rooms default to
// the public chat bundle, everything else to private chat.
func DefaultPreset(public bool) Preset {
	if public {
		return PresetPublicChat
	}
	return PresetPrivateChat
}

// CreationOptions parameterizes one room creation. It is never persisted.
type CreationOptions struct {
	Alias      string
	Federate   bool
	InviteList []string
	Name       string
	Preset     Preset
	Topic      string
	Public     bool
}

// RoomService creates rooms atomically with their initial state and the
// creator's founding membership.
type RoomService struct {
	store  *repository.Store
	domain string
}

func NewRoomService(store *repository.Store, domain string) *RoomService {
	return &RoomService{store: store, domain: domain}
}

// CreateRoom writes the room row, its creation and initial state events, the
// optional alias claim, the creator's join and any invites in one
// transaction. Either all of it becomes visible or none of it does; a room
// row without its founding join must never be observable.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID string, opts CreationOptions) (model.Room, error) {
	now := time.Now().UTC()
	room := model.Room{
		ID:        id.NewRoom(s.domain),
		UserID:    creatorID,
		Public:    opts.Public,
		CreatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.InsertRoom(ctx, room); err != nil {
			return err
		}

		createContent := map[string]any{
			"creator":    creatorID,
			"m.federate": opts.Federate,
		}
		if err := insertStateEvent(ctx, tx, s.domain, room.ID, creatorID, "m.room.create", "", createContent, now); err != nil {
			return err
		}

		preset := opts.Preset
		if !preset.Valid() {
			preset = DefaultPreset(opts.Public)
		}
		joinRules := map[string]any{"join_rule": preset.joinRule()}
		if err := insertStateEvent(ctx, tx, s.domain, room.ID, creatorID, "m.room.join_rules", "", joinRules, now); err != nil {
			return err
		}
		history := map[string]any{"history_visibility": preset.historyVisibility()}
		if err := insertStateEvent(ctx, tx, s.domain, room.ID, creatorID, "m.room.history_visibility", "", history, now); err != nil {
			return err
		}

		if opts.Name != "" {
			if err := insertStateEvent(ctx, tx, s.domain, room.ID, creatorID, "m.room.name", "", map[string]any{"name": opts.Name}, now); err != nil {
				return err
			}
		}
		if opts.Topic != "" {
			if err := insertStateEvent(ctx, tx, s.domain, room.ID, creatorID, "m.room.topic", "", map[string]any{"topic": opts.Topic}, now); err != nil {
				return err
			}
		}

		if opts.Alias != "" {
			alias := model.RoomAlias{
				Alias:     id.NewAlias(opts.Alias, s.domain),
				RoomID:    room.ID,
				UserID:    creatorID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertRoomAlias(ctx, alias); err != nil {
				if repository.IsUniqueViolation(err) {
					return ErrAliasTaken
				}
				return err
			}
		}

		if _, err := appendMembership(ctx, tx, s.domain, room.ID, creatorID, creatorID, MembershipJoin, now); err != nil {
			return err
		}
		for _, invitee := range opts.InviteList {
			if _, err := appendMembership(ctx, tx, s.domain, room.ID, invitee, creatorID, MembershipInvite, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Room{}, err
	}
	return room, nil
}

// ResolveAlias looks up the room an alias points at.
func (s *RoomService) ResolveAlias(ctx context.Context, alias string) (model.RoomAlias, error) {
	row, err := s.store.GetRoomAlias(ctx, alias)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RoomAlias{}, ErrAliasNotFound
	}
	return row, err
}

func insertStateEvent(ctx context.Context, tx *repository.Store, domain, roomID, senderID, eventType, stateKey string, content map[string]any, at time.Time) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, model.Event{
		ID:        id.NewEvent(domain),
		RoomID:    roomID,
		UserID:    senderID,
		EventType: eventType,
		StateKey:  &stateKey,
		Content:   payload,
		CreatedAt: at,
	})
}
