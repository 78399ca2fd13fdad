package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email   string `json:"email,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
}

// tokenManager mints and verifies the JWT session token pair issued by the
// local identity provider.
type tokenManager struct {
	secretKey    []byte
	issuer       string
	accessDelta  time.Duration
	refreshDelta time.Duration
}

func newTokenManager(conf *core.Config) *tokenManager {
	return &tokenManager{
		secretKey:    []byte(conf.SecretKey),
		issuer:       conf.AppName,
		accessDelta:  conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

func (tm *tokenManager) generateSession(ident Identity) (Session, error) {
	now := nowFunc()
	expiresAt := now.Add(tm.accessDelta)

	access, err := tm.sign(ident, now, expiresAt, false)
	if err != nil {
		return Session{}, errors.Wrap(err, "signing access token")
	}
	refresh, err := tm.sign(ident, now, now.Add(tm.refreshDelta), true)
	if err != nil {
		return Session{}, errors.Wrap(err, "signing refresh token")
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (tm *tokenManager) sign(ident Identity, now, expiresAt time.Time, refresh bool) (string, error) {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    tm.issuer,
			Subject:   ident.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
		Email:   ident.Email,
		Refresh: refresh,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// verify parses and validates a token string, enforcing the refresh flag.
func (tm *tokenManager) verify(tokenStr string, refresh bool) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secretKey, nil
	})
	if err != nil {
		if vErr, ok := err.(*jwt.ValidationError); ok && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrSessionExpired
		}
		return nil, ErrNoSession
	}
	if !token.Valid || claims.Refresh != refresh {
		return nil, ErrNoSession
	}
	return claims, nil
}
