package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidLocalpart(t *testing.T) {
	assert.True(t, validLocalpart("carl"))
	assert.True(t, validLocalpart("carl.b_2-x=y"))
	assert.False(t, validLocalpart(""))
	assert.False(t, validLocalpart("Carl"))
	assert.False(t, validLocalpart("carl!"))
	assert.False(t, validLocalpart("carl:example.org"))
	assert.False(t, validLocalpart("@carl"))
}
