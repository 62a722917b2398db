package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lattice-im/lattice/internal/auth"
	"github.com/lattice-im/lattice/internal/config"
	"github.com/lattice-im/lattice/internal/metrics"
	"github.com/lattice-im/lattice/internal/ratelimit"
	"github.com/lattice-im/lattice/internal/repository"
	"github.com/lattice-im/lattice/internal/service"
)

type Server struct {
	cfg     config.Config
	engine  *auth.Engine
	users   *service.UserService
	rooms   *service.RoomService
	members *service.MembershipService
	limiter *ratelimit.Limiter
}

func NewServer(cfg config.Config, store *repository.Store, engine *auth.Engine, limiter *ratelimit.Limiter) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		users:   service.NewUserService(store, engine, cfg.ServerName),
		rooms:   service.NewRoomService(store, cfg.ServerName),
		members: service.NewMembershipService(store, cfg.ServerName),
		limiter: limiter,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/_matrix/client/versions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"versions": {"r0.6.1"}})
	})

	r.Route("/_matrix/client/r0", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/directory/room/{roomAlias}", s.handleResolveAlias)

		r.With(s.authMiddleware).Post("/logout", s.handleLogout)
		r.With(s.authMiddleware).Post("/account/deactivate", s.handleDeactivate)
		r.With(s.authMiddleware).Post("/createRoom", s.handleCreateRoom)

		r.With(s.authMiddleware).Route("/rooms/{roomID}", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Post("/invite", s.handleInvite)
			r.Post("/leave", s.handleLeave)
			r.Post("/ban", s.handleBan)
			r.Post("/knock", s.handleKnock)
			r.Get("/state/m.room.member/{userID}", s.handleMemberState)
		})
	})

	return r
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	HomeServer  string `json:"home_server"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadJSON, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeBadJSON, "username and password are required")
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		UserID:      user.ID,
		AccessToken: token,
		HomeServer:  s.cfg.ServerName,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadJSON, "invalid request body")
		return
	}
	if req.User == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeBadJSON, "user and password are required")
		return
	}

	allowed, err := s.limiter.Allow(r.Context(), "login:"+req.User)
	if err != nil {
		// The throttle is best-effort: a broken limiter must not lock
		// everyone out.
		log.Error().Err(err).Msg("login throttle")
	} else if !allowed {
		metrics.LoginsTotal.WithLabelValues("throttled").Inc()
		writeError(w, http.StatusTooManyRequests, codeLimitExceeded, "too many login attempts")
		return
	}

	userID, err := s.users.Authenticate(r.Context(), req.User, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeServiceError(w, err)
		return
	}

	token, err := s.engine.Issue(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, authResponse{
		UserID:      userID,
		AccessToken: token,
		HomeServer:  s.cfg.ServerName,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
		return
	}

	if err := s.engine.Revoke(r.Context(), identity.TokenID); err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.TokensRevokedTotal.Inc()
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
		return
	}

	if err := s.users.Deactivate(r.Context(), identity.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type createRoomRequest struct {
	CreationContent *creationContent `json:"creation_content"`
	Invite          []string         `json:"invite"`
	Name            string           `json:"name"`
	Preset          string           `json:"preset"`
	RoomAliasName   string           `json:"room_alias_name"`
	Topic           string           `json:"topic"`
	Visibility      *string          `json:"visibility"`
}

type creationContent struct {
	Federate *bool `json:"m.federate"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
		return
	}

	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadJSON, "invalid request body")
		return
	}

	// Validation happens before any transaction opens.
	if req.Visibility != nil && *req.Visibility != "public" && *req.Visibility != "private" {
		writeError(w, http.StatusBadRequest, codeBadJSON, "visibility must be \"public\" or \"private\"")
		return
	}
	preset := service.Preset(req.Preset)
	if req.Preset != "" && !preset.Valid() {
		writeError(w, http.StatusBadRequest, codeBadJSON, "unknown preset")
		return
	}

	public := req.Visibility != nil && *req.Visibility == "public"
	federate := true
	if req.CreationContent != nil && req.CreationContent.Federate != nil {
		federate = *req.CreationContent.Federate
	}

	room, err := s.rooms.CreateRoom(r.Context(), identity.UserID, service.CreationOptions{
		Alias:      req.RoomAliasName,
		Federate:   federate,
		InviteList: req.Invite,
		Name:       req.Name,
		Preset:     preset,
		Topic:      req.Topic,
		Public:     public,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.RoomsCreatedTotal.Inc()
	writeJSON(w, http.StatusOK, createRoomResponse{RoomID: room.ID})
}

type resolveAliasResponse struct {
	RoomID  string   `json:"room_id"`
	Servers []string `json:"servers"`
}

func (s *Server) handleResolveAlias(w http.ResponseWriter, r *http.Request) {
	// The # sigil arrives percent-encoded.
	alias, err := url.PathUnescape(chi.URLParam(r, "roomAlias"))
	if err != nil || alias == "" {
		writeError(w, http.StatusBadRequest, codeBadJSON, "missing room alias")
		return
	}

	row, err := s.rooms.ResolveAlias(r.Context(), alias)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveAliasResponse{
		RoomID:  row.RoomID,
		Servers: []string{s.cfg.ServerName},
	})
}

type membershipTargetRequest struct {
	UserID string `json:"user_id"`
}

type membershipResponse struct {
	Membership string `json:"membership"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.recordOwnMembership(w, r, service.MembershipJoin, true)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.recordOwnMembership(w, r, service.MembershipLeave, false)
}

func (s *Server) handleKnock(w http.ResponseWriter, r *http.Request) {
	s.recordOwnMembership(w, r, service.MembershipKnock, false)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	s.recordTargetMembership(w, r, service.MembershipInvite)
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	s.recordTargetMembership(w, r, service.MembershipBan)
}

// recordOwnMembership handles the sender-equals-subject operations: join,
// leave, knock.
func (s *Server) recordOwnMembership(w http.ResponseWriter, r *http.Request, state string, includeRoomID bool) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
		return
	}
	roomID := chi.URLParam(r, "roomID")

	if _, err := s.members.Record(r.Context(), roomID, identity.UserID, identity.UserID, state); err != nil {
		writeServiceError(w, err)
		return
	}

	if includeRoomID {
		writeJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// recordTargetMembership handles invite and ban, where the subject comes
// from the request body.
func (s *Server) recordTargetMembership(w http.ResponseWriter, r *http.Request, state string) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
		return
	}
	roomID := chi.URLParam(r, "roomID")

	var req membershipTargetRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeBadJSON, "user_id is required")
		return
	}

	if _, err := s.members.Record(r.Context(), roomID, req.UserID, identity.UserID, state); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleMemberState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	userID := chi.URLParam(r, "userID")

	membership, err := s.members.Current(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{Membership: membership})
}

// authMiddleware resolves the presented bearer token into an identity before
// the handler body runs. Unknown and revoked tokens are indistinguishable to
// the client.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeMissingToken, "missing access token")
			return
		}

		identity, err := s.engine.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, codeUnknownToken, "unrecognised access token")
				return
			}
			log.Error().Err(err).Msg("token verification")
			writeError(w, http.StatusInternalServerError, codeUnknown, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, &identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type identityKey struct{}

func identityFromContext(ctx context.Context) *auth.Identity {
	value := ctx.Value(identityKey{})
	identity, _ := value.(*auth.Identity)
	return identity
}

// bearerToken accepts the Authorization header or the legacy access_token
// query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(out)
}
