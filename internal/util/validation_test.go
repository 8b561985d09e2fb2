package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("pp-1"))
	assert.False(t, IsValidUUID("6F1C2D3E-4A5B-4C6D-8E9F-0A1B2C3D4E5F"))
}

func TestIsValidEnum(t *testing.T) {
	levels := []string{"debug", "info"}
	assert.True(t, IsValidEnum("info", levels))
	assert.True(t, IsValidEnum("", levels))
	assert.False(t, IsValidEnum("trace", levels))
}
