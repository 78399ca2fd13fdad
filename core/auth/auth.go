package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrTimeout            = errors.New("authentication request timed out")
	ErrTransient          = errors.New("identity provider unavailable")
	ErrBusy               = errors.New("authentication already in progress")
	ErrNoSession          = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")

	nowFunc = time.Now // mockable
)

type (
	// Credential is a transient email/password pair; it is never persisted
	// beyond the resolution call.
	Credential struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// Session is the token pair issued by an identity provider. It is owned
	// exclusively by the Resolver and invalidated on logout or expiry.
	Session struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	}

	// Identity is the provider's bare authentication record, along with the
	// display name and role metadata captured at sign-up. The metadata lets
	// the Resolver synthesize a profile lazily when the profile row is
	// missing after a successful authentication.
	Identity struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		Role         string    `json:"role"`
		PasswordHash []byte    `json:"-"`
		CreatedAt    time.Time `json:"created_at"` // UTC
	}

	// Provider is the primary auth provider contract.
	Provider interface {
		SignIn(ctx context.Context, email, password string) (Session, Identity, error)
		SignUp(ctx context.Context, email, password string, meta Identity) (Identity, error)
		// Refresh exchanges a valid refresh token for a new Session.
		Refresh(ctx context.Context, refreshToken string) (Session, Identity, error)
		// GetSession resolves an existing access token back to its Identity.
		GetSession(ctx context.Context, accessToken string) (Identity, error)
		SignOut(ctx context.Context, accessToken string) error
	}
)

func (s Session) IsZero() bool {
	return s.AccessToken == ""
}

func (s Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && nowFunc().After(s.ExpiresAt)
}

func (i *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.PasswordHash = hash
	return nil
}

func (i *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(i.PasswordHash, []byte(pwd))
}

func (c *Credential) Validate() error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return core.Validate.Struct(c)
}
