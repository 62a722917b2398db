// Package id builds and inspects the identifiers the server hands out:
// @user:domain, !room:domain, #alias:domain and $event:domain.
package id

import (
	"strings"

	"github.com/google/uuid"
)

func NewUser(localpart, domain string) string {
	return "@" + localpart + ":" + domain
}

func NewRoom(domain string) string {
	return "!" + opaque() + ":" + domain
}

func NewAlias(localpart, domain string) string {
	return "#" + localpart + ":" + domain
}

func NewEvent(domain string) string {
	return "$" + opaque() + ":" + domain
}

// IsUser reports whether the value carries the user sigil. Login accepts
// either a full user ID or a bare localpart.
func IsUser(value string) bool {
	return strings.HasPrefix(value, "@")
}

// Localpart returns the text between the sigil and the domain separator,
// or the input unchanged if it has neither.
func Localpart(value string) string {
	if len(value) > 0 {
		switch value[0] {
		case '@', '!', '#', '$':
			value = value[1:]
		}
	}
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		return value[:idx]
	}
	return value
}

func opaque() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
