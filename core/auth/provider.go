package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type (
	// Repository stores the provider's identities, separate from the
	// application profiles in core/user.
	Repository interface {
		CreateIdentity(ctx context.Context, ident Identity) (Identity, error)
		GetIdentityByID(ctx context.Context, id string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		UpdateIdentity(ctx context.Context, ident Identity) (Identity, error)
	}

	// localProvider is the built-in primary auth provider: bcrypt credentials
	// against the identities table, stateless JWT session pair.
	localProvider struct {
		repo   Repository
		tokens *tokenManager
	}
)

var _ Provider = (*localProvider)(nil) // interface compliance check

func NewLocalProvider(conf *core.Config, repo Repository) Provider {
	return &localProvider{
		repo:   repo,
		tokens: newTokenManager(conf),
	}
}

func (p *localProvider) SignIn(ctx context.Context, email, password string) (Session, Identity, error) {
	ident, err := p.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrIdentityNotFound {
			return Session{}, Identity{}, ErrInvalidCredentials
		}
		return Session{}, Identity{}, err
	}
	if err = ident.CheckPassword(password); err != nil {
		return Session{}, Identity{}, ErrInvalidCredentials
	}
	sess, err := p.tokens.generateSession(ident)
	if err != nil {
		return Session{}, Identity{}, err
	}
	return sess, ident, nil
}

func (p *localProvider) SignUp(ctx context.Context, email, password string, meta Identity) (Identity, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := p.repo.GetIdentityByEmail(ctx, email); err == nil {
		return Identity{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrIdentityNotFound {
		return Identity{}, err
	}

	ident := Identity{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      meta.Name,
		Role:      meta.Role,
		CreatedAt: nowFunc().UTC(),
	}
	if err := ident.SetPassword(password); err != nil {
		return Identity{}, errors.Wrap(err, "setting password")
	}
	return p.repo.CreateIdentity(ctx, ident)
}

func (p *localProvider) Refresh(ctx context.Context, refreshToken string) (Session, Identity, error) {
	claims, err := p.tokens.verify(refreshToken, true /* refresh */)
	if err != nil {
		return Session{}, Identity{}, err
	}
	ident, err := p.repo.GetIdentityByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, Identity{}, err
	}
	sess, err := p.tokens.generateSession(ident)
	if err != nil {
		return Session{}, Identity{}, err
	}
	return sess, ident, nil
}

func (p *localProvider) GetSession(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := p.tokens.verify(accessToken, false)
	if err != nil {
		return Identity{}, err
	}
	return p.repo.GetIdentityByID(ctx, claims.Subject)
}

// SignOut is a no-op for the local provider: the session pair is stateless
// and expires on its own; the Resolver clears all local state regardless.
func (p *localProvider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}
