package token_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/token"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(t *testing.T, c *clock, options ...token.IssuerOption) *token.Issuer {
	t.Helper()
	options = append([]token.IssuerOption{
		token.WithNowFunc(c.Now),
		token.WithIssuerName("test"),
	}, options...)
	issuer, err := token.NewIssuer(token.NewHMACSigner(testSecret), options...)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_RejectsRefreshNotAfterAccess(t *testing.T) {
	_, err := token.NewIssuer(token.NewHMACSigner(testSecret), token.WithTokenExpiry(time.Hour, time.Hour))
	require.Error(t, err)

	_, err = token.NewIssuer(nil)
	require.Error(t, err)
}

func TestIssuer_Issue(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	tok, err := issuer.Issue("admin")
	require.NoError(t, err)
	require.Equal(t, c.now.Unix()+3600, tok.AccessExpiry)
	require.Equal(t, c.now.Unix()+7200, tok.RefreshExpiry)
	require.Less(t, tok.AccessExpiry, tok.RefreshExpiry)
	require.True(t, tok.HasComponents())

	sub, err := issuer.Subject(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", sub)

	_, err = issuer.Subject(tok.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken, "refresh token is not an access token")

	_, err = issuer.Issue("  ")
	require.ErrorIs(t, err, autherrors.ErrValidation)
}

func TestIssuer_RefreshRotatesOpaqueValues(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	tok, err := issuer.Issue("admin")
	require.NoError(t, err)

	c.Advance(59 * time.Minute)
	refreshed, err := issuer.Refresh(context.Background(), tok)
	require.NoError(t, err)

	require.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, c.now.Unix()+3600, refreshed.AccessExpiry)
	require.Equal(t, c.now.Unix()+7200, refreshed.RefreshExpiry)

	_, err = issuer.Refresh(context.Background(), tok)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken, "rotated refresh token cannot be replayed")
}

func TestIssuer_RefreshInvalidToken(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	_, err := issuer.Refresh(context.Background(), token.Token{AccessToken: "a"})
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = issuer.Refresh(context.Background(), token.Token{RefreshToken: "r"})
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = issuer.Refresh(context.Background(), token.Token{AccessToken: "a", RefreshToken: "garbage"})
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestIssuer_RefreshRejectsForeignSigner(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	other, err := token.NewIssuer(token.NewHMACSigner("other-secret"), token.WithNowFunc(c.Now), token.WithIssuerName("test"))
	require.NoError(t, err)
	tok, err := other.Issue("admin")
	require.NoError(t, err)

	_, err = newTestIssuer(t, c).Refresh(context.Background(), tok)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestIssuer_RefreshExpired(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	tok, err := issuer.Issue("admin")
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	_, err = issuer.Refresh(context.Background(), tok)
	require.ErrorIs(t, err, autherrors.ErrRefreshExpired)
	require.True(t, autherrors.IsTerminalRefresh(err))
}

func TestIssuer_RevokeBlocksRefresh(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	tok, err := issuer.Issue("admin")
	require.NoError(t, err)
	require.NoError(t, issuer.Revoke(tok))

	_, err = issuer.Refresh(context.Background(), tok)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	require.NoError(t, issuer.Revoke(token.Token{}), "nothing to revoke")
}

func TestIssuer_RefreshLatencyHonoursContext(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c, token.WithLatency(time.Hour))

	tok, err := issuer.Issue("admin")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = issuer.Refresh(ctx, tok)
	require.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryRevokedTokenCache_Cleanup(t *testing.T) {
	cache := token.NewInMemoryRevokedTokenCache()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, cache.Add("old", now.Add(-time.Second)))
	require.NoError(t, cache.Add("live", now.Add(time.Hour)))
	cache.Cleanup(now)

	require.False(t, cache.IsRevoked("old"))
	require.True(t, cache.IsRevoked("live"))
}

func TestIssuer_ConcurrentRefreshOfOneTokenHasOneWinner(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, c)

	for round := 0; round < 50; round++ {
		tok, err := issuer.Issue("admin")
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		var succeeded, rejected atomic.Int32
		start := make(chan struct{})
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := issuer.Refresh(context.Background(), tok)
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, autherrors.ErrInvalidToken):
					rejected.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), succeeded.Load(), "round %d", round)
		require.Equal(t, int32(workers-1), rejected.Load(), "round %d", round)
	}
}

func TestInMemoryRevokedTokenCache_AddIfAbsent(t *testing.T) {
	cache := token.NewInMemoryRevokedTokenCache()
	exp := time.Unix(1_700_000_000, 0).Add(time.Hour)

	require.True(t, cache.AddIfAbsent("jti-1", exp))
	require.False(t, cache.AddIfAbsent("jti-1", exp))
	require.True(t, cache.IsRevoked("jti-1"))

	require.NoError(t, cache.Add("jti-2", exp))
	require.False(t, cache.AddIfAbsent("jti-2", exp))
}
