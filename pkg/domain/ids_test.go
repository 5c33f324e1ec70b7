package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vcissuer/pkg/domain-errors"
)

func TestParseSessionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		got, err := ParseSessionID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(raw), got)
		assert.Equal(t, raw.String(), got.String())
	})
}

func TestParseVendorSessionID(t *testing.T) {
	_, err := ParseVendorSessionID("   ")
	require.Error(t, err)

	got, err := ParseVendorSessionID(" b988e9c8-47c6-430c-9ca3-8cdacd85ee91 ")
	require.NoError(t, err)
	assert.Equal(t, VendorSessionID("b988e9c8-47c6-430c-9ca3-8cdacd85ee91"), got)
	assert.False(t, got.IsNil())
}
