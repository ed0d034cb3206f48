package token

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/internal/utils"
	"github.com/pkg/errors"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	defaultAccessTokenExpiry  = time.Hour
	defaultRefreshTokenExpiry = 2 * time.Hour
)

// Issuer mints, rotates and revokes Tokens. Access and refresh parts are
// both HS256 JWTs so any process holding the secret can verify them.
type Issuer struct {
	signer             Signer
	issuer             string
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	latency            time.Duration // simulated network round trip on Refresh
	nowFunc            func() time.Time
}

type IssuerOption func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func WithIssuerName(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) IssuerOption {
	return func(i *Issuer) {
		i.revokedCache = cache
	}
}

func WithLatency(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.latency = d
	}
}

func NewIssuer(signer Signer, options ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}

	i := &Issuer{
		signer:             signer,
		revokedCache:       NewInMemoryRevokedTokenCache(),
		accessTokenExpiry:  defaultAccessTokenExpiry,
		refreshTokenExpiry: defaultRefreshTokenExpiry,
		nowFunc:            time.Now,
	}
	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry <= 0 {
		return nil, errors.New("[NewIssuer] access token expiry must be positive")
	}
	if i.refreshTokenExpiry <= i.accessTokenExpiry {
		return nil, errors.Errorf("[NewIssuer] refresh expiry %s must exceed access expiry %s",
			i.refreshTokenExpiry, i.accessTokenExpiry)
	}
	return i, nil
}

// Issue mints a fresh Token for username.
func (i *Issuer) Issue(username string) (Token, error) {
	if strings.TrimSpace(username) == "" {
		return Token{}, errors.Wrap(autherrors.ErrValidation, "[Issuer.Issue] username is required")
	}

	now := i.nowFunc()
	accessExp := now.Add(i.accessTokenExpiry).Unix()
	refreshExp := now.Add(i.refreshTokenExpiry).Unix()

	accessToken, err := i.sign(username, typeAccess, now, accessExp)
	if err != nil {
		return Token{}, errors.Wrap(err, "[Issuer.Issue] access token")
	}
	refreshToken, err := i.sign(username, typeRefresh, now, refreshExp)
	if err != nil {
		return Token{}, errors.Wrap(err, "[Issuer.Issue] refresh token")
	}

	return Token{
		AccessToken:   accessToken,
		AccessExpiry:  accessExp,
		RefreshToken:  refreshToken,
		RefreshExpiry: refreshExp,
	}, nil
}

// Refresh exchanges tok for a new Token with new opaque values and expiries.
// The presented refresh token is revoked so it cannot be replayed.
func (i *Issuer) Refresh(ctx context.Context, tok Token) (Token, error) {
	if !tok.HasComponents() {
		return Token{}, autherrors.ErrInvalidToken
	}

	if err := utils.Sleep(ctx, i.latency); err != nil {
		return Token{}, errors.Wrap(err, "[Issuer.Refresh] waiting for issuer")
	}

	now := i.nowFunc()
	if tok.RefreshExpiry != 0 && now.Unix() >= tok.RefreshExpiry {
		return Token{}, autherrors.ErrRefreshExpired
	}

	claims, err := i.parse(tok.RefreshToken, typeRefresh)
	if err != nil {
		return Token{}, err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Token{}, errors.Wrap(autherrors.ErrInvalidToken, "[Issuer.Refresh] missing subject")
	}

	// Claiming the jti is the replay check: a concurrent exchange of the
	// same refresh token loses here.
	jti, _ := claims["jti"].(string)
	if jti == "" || !i.revokedCache.AddIfAbsent(jti, i.revocationExpiry(claims)) {
		return Token{}, errors.Wrap(autherrors.ErrInvalidToken, "[Issuer.Refresh] refresh token revoked")
	}
	return i.Issue(subject)
}

// Revoke invalidates the refresh part of tok. Already expired or unparsable
// tokens are ignored since they cannot be exchanged anyway.
func (i *Issuer) Revoke(tok Token) error {
	if tok.RefreshToken == "" {
		return nil
	}
	claims, err := i.parse(tok.RefreshToken, typeRefresh)
	if err != nil {
		return nil
	}
	i.revokedCache.Cleanup(i.nowFunc())
	return i.revokeClaims(claims)
}

// Subject returns the username an unexpired access token was issued to.
func (i *Issuer) Subject(accessToken string) (string, error) {
	claims, err := i.parse(accessToken, typeAccess)
	if err != nil {
		return "", err
	}
	return claims.GetSubject()
}

func (i *Issuer) sign(subject, typ string, now time.Time, exp int64) (string, error) {
	claims := jwt.MapClaims{
		"iss": i.issuer,            // The issuer of the token
		"sub": subject,             // The username
		"typ": typ,                 // access or refresh
		"iat": now.Unix(),          // Issued At
		"exp": exp,                 // Expiry
		"jti": uuid.New().String(), // Unique token ID for rotation and revocation
	}
	return i.signer.Sign(claims)
}

func (i *Issuer) parse(raw, typ string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(i.nowFunc),
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, i.signer.GetVerificationKey, opts...); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && typ == typeRefresh {
			return nil, autherrors.ErrRefreshExpired
		}
		return nil, errors.Wrap(autherrors.ErrInvalidToken, err.Error())
	}

	if got, _ := claims["typ"].(string); got != typ {
		return nil, errors.Wrapf(autherrors.ErrInvalidToken, "expected %s token, got %q", typ, got)
	}
	return claims, nil
}

func (i *Issuer) revokeClaims(claims jwt.MapClaims) error {
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	return i.revokedCache.Add(jti, i.revocationExpiry(claims))
}

// revocationExpiry is how long a revoked jti must be remembered.
func (i *Issuer) revocationExpiry(claims jwt.MapClaims) time.Time {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return i.nowFunc().Add(i.refreshTokenExpiry)
	}
	return exp.Time
}
