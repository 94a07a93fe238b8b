package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", hash)

	require.NoError(t, CheckPassword(hash, "correct horse"))
	require.Error(t, CheckPassword(hash, "battery staple"))
}

func TestNewResetToken(t *testing.T) {
	raw, hash, err := NewResetToken()
	require.NoError(t, err)
	require.Len(t, raw, 64)
	require.Equal(t, HashResetToken(raw), hash)
	require.NotEqual(t, raw, hash)

	other, _, err := NewResetToken()
	require.NoError(t, err)
	require.NotEqual(t, raw, other)
}
