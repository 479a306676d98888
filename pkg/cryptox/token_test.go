package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.Len(t, token, 43)

	other, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestNewInviteCode(t *testing.T) {
	code, fp, err := NewInviteCode()
	require.NoError(t, err)
	require.NotEqual(t, code, fp)
	require.Equal(t, FingerprintToken(code), fp)
	require.Len(t, fp, 43)
}
