package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-im/lattice/internal/model"
)

func TestValidMembership(t *testing.T) {
	for _, state := range []string{"invite", "join", "leave", "ban", "knock"} {
		assert.True(t, ValidMembership(state), state)
	}
	assert.False(t, ValidMembership("kick"))
	assert.False(t, ValidMembership(""))
}

func TestAllowedTransition(t *testing.T) {
	publicRoom := model.Room{ID: "!r:x", UserID: "@creator:x", Public: true}
	privateRoom := model.Room{ID: "!r:x", UserID: "@creator:x", Public: false}

	tests := []struct {
		name           string
		room           model.Room
		subjectCurrent string
		senderCurrent  string
		subject        string
		sender         string
		state          string
		allowed        bool
	}{
		{"join public room", publicRoom, "", "", "@a:x", "@a:x", "join", true},
		{"join private room uninvited", privateRoom, "", "", "@a:x", "@a:x", "join", false},
		{"join private room invited", privateRoom, "invite", "invite", "@a:x", "@a:x", "join", true},
		{"creator rejoins private room", privateRoom, "leave", "leave", "@creator:x", "@creator:x", "join", true},
		{"join on behalf of another", publicRoom, "", "", "@a:x", "@b:x", "join", false},
		{"banned user joins public room", publicRoom, "ban", "ban", "@a:x", "@a:x", "join", false},

		{"invite from joined member", privateRoom, "", "join", "@a:x", "@b:x", "invite", true},
		{"invite from outsider", privateRoom, "", "", "@a:x", "@b:x", "invite", false},
		{"invite already joined", privateRoom, "join", "join", "@a:x", "@b:x", "invite", false},
		{"invite banned user", privateRoom, "ban", "join", "@a:x", "@b:x", "invite", false},

		{"leave after join", publicRoom, "join", "join", "@a:x", "@a:x", "leave", true},
		{"leave declines invite", privateRoom, "invite", "invite", "@a:x", "@a:x", "leave", true},
		{"leave retracts knock", privateRoom, "knock", "knock", "@a:x", "@a:x", "leave", true},
		{"leave without membership", publicRoom, "", "", "@a:x", "@a:x", "leave", false},
		{"leave on behalf of another", publicRoom, "join", "join", "@a:x", "@b:x", "leave", false},

		{"ban by joined member", publicRoom, "join", "join", "@a:x", "@b:x", "ban", true},
		{"ban by outsider", publicRoom, "join", "", "@a:x", "@b:x", "ban", false},
		{"self ban", publicRoom, "join", "join", "@a:x", "@a:x", "ban", false},

		{"knock on private room", privateRoom, "", "", "@a:x", "@a:x", "knock", true},
		{"knock on public room", publicRoom, "", "", "@a:x", "@a:x", "knock", false},
		{"knock while joined", privateRoom, "join", "join", "@a:x", "@a:x", "knock", false},
		{"knock while banned", privateRoom, "ban", "ban", "@a:x", "@a:x", "knock", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := allowedTransition(tt.room, tt.subjectCurrent, tt.senderCurrent, tt.subject, tt.sender, tt.state)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}
