package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lattice-im/lattice/internal/service"
)

// Client-visible error codes.
const (
	codeBadJSON         = "M_BAD_JSON"
	codeForbidden       = "M_FORBIDDEN"
	codeMissingToken    = "M_MISSING_TOKEN"
	codeUnknownToken    = "M_UNKNOWN_TOKEN"
	codeInvalidUsername = "M_INVALID_USERNAME"
	codeUserInUse       = "M_USER_IN_USE"
	codeRoomInUse       = "M_ROOM_IN_USE"
	codeNotFound        = "M_NOT_FOUND"
	codeLimitExceeded   = "M_LIMIT_EXCEEDED"
	codeUnknown         = "M_UNKNOWN"
)

type errorResponse struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{ErrCode: code, Error: message})
}

// writeServiceError maps the service sentinels onto the wire taxonomy.
// Unclassified errors are storage failures: logged with detail server-side,
// surfaced without it.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, codeForbidden, "invalid credentials")
	case errors.Is(err, service.ErrInvalidLocalpart):
		writeError(w, http.StatusBadRequest, codeInvalidUsername, "invalid username")
	case errors.Is(err, service.ErrUserTaken):
		writeError(w, http.StatusConflict, codeUserInUse, "user id already taken")
	case errors.Is(err, service.ErrAliasTaken):
		writeError(w, http.StatusConflict, codeRoomInUse, "room alias already taken")
	case errors.Is(err, service.ErrAliasNotFound),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrMembershipNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, service.ErrBadMembership):
		writeError(w, http.StatusBadRequest, codeBadJSON, "unknown membership state")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
	default:
		log.Error().Err(err).Msg("storage error")
		writeError(w, http.StatusInternalServerError, codeUnknown, "internal server error")
	}
}
