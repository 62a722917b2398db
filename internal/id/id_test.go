package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	assert.Equal(t, "@carl:example.org", NewUser("carl", "example.org"))
}

func TestNewRoomIsUnique(t *testing.T) {
	a := NewRoom("example.org")
	b := NewRoom("example.org")

	require.True(t, strings.HasPrefix(a, "!"))
	require.True(t, strings.HasSuffix(a, ":example.org"))
	assert.NotEqual(t, a, b)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("example.org")
	require.True(t, strings.HasPrefix(ev, "$"))
	require.True(t, strings.HasSuffix(ev, ":example.org"))
}

func TestIsUser(t *testing.T) {
	assert.True(t, IsUser("@carl:example.org"))
	assert.False(t, IsUser("carl"))
	assert.False(t, IsUser("!abc:example.org"))
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "carl", Localpart("@carl:example.org"))
	assert.Equal(t, "my_room", Localpart("#my_room:example.org"))
	assert.Equal(t, "carl", Localpart("carl"))
}
