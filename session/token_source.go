package session

import (
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/token"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*TokenSource)(nil)

// TokenSource hands the session's current access token to oauth2 HTTP
// clients. It never refreshes on its own; the Store's scheduler does that.
type TokenSource struct {
	store *Store
}

func (s *Store) TokenSource() *TokenSource {
	return &TokenSource{store: s}
}

func (ts *TokenSource) Token() (*oauth2.Token, error) {
	tok := ts.store.Token()
	if !ts.store.IsAuthenticated() || !token.IsValid(tok, ts.store.nowFunc()) {
		return nil, autherrors.ErrInvalidToken
	}
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.AccessExpiresAt(),
	}, nil
}
