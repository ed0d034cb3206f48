package token_test

import (
	"testing"
	"time"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	require.False(t, token.IsValid(nil, now))
	require.True(t, token.IsValid(&token.Token{AccessExpiry: now.Unix() + 1}, now))
	require.False(t, token.IsValid(&token.Token{AccessExpiry: now.Unix()}, now), "exactly at expiry is invalid")
	require.True(t, token.IsValid(&token.Token{AccessExpiry: now.Unix()}, now.Add(-time.Millisecond)))
	require.False(t, token.IsValid(&token.Token{AccessExpiry: now.Unix() - 10}, now))
}

func TestEncodeDecode_PersistedFieldNames(t *testing.T) {
	tok := token.Token{AccessToken: "a", AccessExpiry: 10, RefreshToken: "r", RefreshExpiry: 20}
	raw, err := tok.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"a","exp":10,"refreshToken":"r","refresh_exp":20}`, raw)

	got, err := token.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, tok, *got)
}

func TestDecode_Corrupt(t *testing.T) {
	for _, raw := range []string{"", "null", "{not json", `"string"`} {
		_, err := token.Decode(raw)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken, raw)
	}
}

func TestHasComponents(t *testing.T) {
	require.True(t, token.Token{AccessToken: "a", RefreshToken: "r"}.HasComponents())
	require.False(t, token.Token{AccessToken: "a"}.HasComponents())
	require.False(t, token.Token{RefreshToken: "r"}.HasComponents())
}
