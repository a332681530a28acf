package httpgin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotModified(t *testing.T) {
	tag := etagOf([]byte(`{"bus_id":7}`), true)

	assert.True(t, notModified(tag, tag))
	assert.True(t, notModified(`"other", `+tag, tag))
	assert.True(t, notModified(tag[2:], tag))
	assert.True(t, notModified("*", tag))
	assert.False(t, notModified("", tag))
	assert.False(t, notModified(`"other"`, tag))
}
