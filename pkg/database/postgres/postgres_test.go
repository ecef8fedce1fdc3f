package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(uuid.NewString()))
	assert.True(t, IsUUID("6F9619FF-8B86-D011-B42D-00C04FC964FF"))
	assert.False(t, IsUUID(""))
	assert.False(t, IsUUID("SKU-1"))
	assert.False(t, IsUUID("6f9619ff-8b86-d011-b42d"))
}
