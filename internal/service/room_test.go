package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresetValid(t *testing.T) {
	assert.True(t, PresetPublicChat.Valid())
	assert.True(t, PresetPrivateChat.Valid())
	assert.True(t, PresetTrustedPrivateChat.Valid())
	assert.False(t, Preset("").Valid())
	assert.False(t, Preset("bogus").Valid())
}

func TestDefaultPreset(t *testing.T) {
	assert.Equal(t, PresetPublicChat, DefaultPreset(true))
	assert.Equal(t, PresetPrivateChat, DefaultPreset(false))
}

func TestPresetStateBundles(t *testing.T) {
	assert.Equal(t, "public", PresetPublicChat.joinRule())
	assert.Equal(t, "shared", PresetPublicChat.historyVisibility())

	assert.Equal(t, "invite", PresetPrivateChat.joinRule())
	assert.Equal(t, "shared", PresetPrivateChat.historyVisibility())

	assert.Equal(t, "invite", PresetTrustedPrivateChat.joinRule())
	assert.Equal(t, "invited", PresetTrustedPrivateChat.historyVisibility())
}
