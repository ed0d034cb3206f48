package token

import (
	"encoding/json"
	"time"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/pkg/errors"
)

// Token is the bearer-credential bundle persisted under the "token" key.
// Expiries are epoch seconds.
type Token struct {
	AccessToken   string `json:"token"`
	AccessExpiry  int64  `json:"exp"`
	RefreshToken  string `json:"refreshToken"`
	RefreshExpiry int64  `json:"refresh_exp"`
}

// IsValid reports whether tok is non-nil and its access part has not
// expired at now. A token exactly at its expiry second is invalid.
func IsValid(tok *Token, now time.Time) bool {
	if tok == nil {
		return false
	}
	return now.UnixMilli() < tok.AccessExpiry*1000
}

// HasComponents reports whether both the access and refresh parts are set.
func (t Token) HasComponents() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

func (t Token) AccessExpiresAt() time.Time {
	return time.Unix(t.AccessExpiry, 0)
}

func (t Token) RefreshExpiresAt() time.Time {
	return time.Unix(t.RefreshExpiry, 0)
}

func (t Token) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "[Token.Encode] json.Marshal")
	}
	return string(b), nil
}

// Decode parses a persisted token. Corrupt input and the JSON literal null
// both yield errors.ErrInvalidToken.
func Decode(raw string) (*Token, error) {
	var tok *Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, err.Error())
	}
	if tok == nil {
		return nil, autherrors.ErrInvalidToken
	}
	return tok, nil
}
