package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// State is the session lifecycle state:
// Unauthenticated → Authenticating → Authenticated → Unauthenticated.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// SessionChangeFunc is notified whenever a session is established or cleared.
type SessionChangeFunc func(Session, user.User)

// Resolver is the identity resolution service: it turns a credential pair or
// an existing token into a Session + profile, falling back to the mock
// identity store when the primary provider fails and fallback is enabled.
// Failures are returned as typed errors, never panics.
type Resolver struct {
	conf     *core.Config
	provider Provider
	fallback *MockStore // nil unless fallback mode is enabled
	profiles user.Service

	mu       sync.Mutex
	inflight map[string]bool // busy gate, keyed per logical session
	session  Session
	profile  user.User
	onChange []SessionChangeFunc
}

func NewResolver(conf *core.Config, provider Provider, profiles user.Service) *Resolver {
	r := &Resolver{
		conf:     conf,
		provider: provider,
		profiles: profiles,
		inflight: make(map[string]bool),
	}
	if conf.Auth.FallbackEnabled {
		r.fallback = NewMockStore()
	}
	return r
}

// Authenticate resolves the credential pair into a session and profile.
//
// The primary provider runs under Config.Auth.SignInTimeout; if it errors or
// exceeds its budget the mock store is consulted when fallback is enabled
// (a degraded-mode success, not an error). A second Authenticate for the
// same email while one is in flight is rejected with ErrBusy: interleaving
// them risks double session creation and racing profile creation.
func (r *Resolver) Authenticate(ctx context.Context, cred Credential) (Session, user.User, error) {
	key := core.CleanString(cred.Email, true /* lower */)
	if err := r.begin(key); err != nil {
		return Session{}, user.User{}, err
	}
	defer r.end(key)

	pctx, cancel := context.WithTimeout(ctx, r.conf.Auth.SignInTimeout)
	sess, ident, err := r.provider.SignIn(pctx, cred.Email, cred.Password)
	cancel()

	if err != nil {
		if r.fallback != nil {
			if fsess, fprof, ferr := r.fallback.SignIn(cred.Email, cred.Password); ferr == nil {
				r.commit(fsess, fprof)
				return fsess, fprof, nil
			}
			// neither source matched
			return Session{}, user.User{}, ErrInvalidCredentials
		}
		return Session{}, user.User{}, r.classify(err)
	}

	prof, err := r.resolveProfile(ctx, ident)
	if err != nil {
		return Session{}, user.User{}, err
	}
	if prof, err = r.profiles.SetLastLogin(ctx, prof); err != nil {
		// non-fatal: the session is valid without the bookkeeping
		prof.LastLogin = prof.UpdatedAt
	}

	r.commit(sess, prof)
	return sess, prof, nil
}

// SignUp creates the primary identity, then the profile, as two non-atomic
// steps against two stores. A failure in between leaves an orphaned identity
// with no profile; the lazy-create in resolveProfile is the compensating
// mechanism on next login (at-least-once creation, not a transaction).
func (r *Resolver) SignUp(ctx context.Context, reg Register) (user.User, error) {
	if err := reg.Validate(); err != nil {
		return user.User{}, err
	}

	pctx, cancel := context.WithTimeout(ctx, r.conf.Auth.SignInTimeout)
	defer cancel()

	ident, err := r.provider.SignUp(pctx, reg.Email, reg.Password, Identity{Name: reg.Name, Role: reg.Role})
	if err != nil {
		return user.User{}, err
	}
	return r.profiles.Create(ctx, user.NewProfile{
		ID:    ident.ID,
		Email: ident.Email,
		Name:  ident.Name,
		Role:  ident.Role,
	})
}

// ResolveProfile fetches the profile for an authenticated user id, falling
// back to the mock store when enabled.
func (r *Resolver) ResolveProfile(ctx context.Context, userID string) (user.User, error) {
	pctx, cancel := context.WithTimeout(ctx, r.conf.Auth.ProfileTimeout)
	defer cancel()

	prof, err := r.profiles.GetByID(pctx, userID)
	if err == nil {
		return prof, nil
	}
	if r.fallback != nil {
		if fprof, ferr := r.fallback.Profile(userID); ferr == nil {
			return fprof, nil
		}
	}
	if errors.Cause(err) == user.ErrNotFound {
		return user.User{}, err
	}
	return user.User{}, r.classify(err)
}

// Bootstrap restores a session from a stored refresh token on startup.
// It is subject to the same busy gate as Authenticate.
func (r *Resolver) Bootstrap(ctx context.Context, refreshToken string) (Session, user.User, error) {
	if err := r.begin(refreshToken); err != nil {
		return Session{}, user.User{}, err
	}
	defer r.end(refreshToken)

	pctx, cancel := context.WithTimeout(ctx, r.conf.Auth.SignInTimeout)
	sess, ident, err := r.provider.Refresh(pctx, refreshToken)
	cancel()
	if err != nil {
		return Session{}, user.User{}, r.classify(err)
	}

	prof, err := r.resolveProfile(ctx, ident)
	if err != nil {
		return Session{}, user.User{}, err
	}

	r.commit(sess, prof)
	return sess, prof, nil
}

// Logout invalidates the session on the provider; local Session and profile
// state is cleared unconditionally, even when provider invalidation errors.
// Local state must never be left pointing at a dead session.
func (r *Resolver) Logout(ctx context.Context) error {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()

	var err error
	if !sess.IsZero() {
		sctx, cancel := context.WithTimeout(ctx, r.conf.Auth.SignInTimeout)
		err = r.provider.SignOut(sctx, sess.AccessToken)
		cancel()
	}
	r.clear()
	return errors.Wrap(err, "invalidating provider session")
}

// CurrentSession returns the owned session pair, detecting expiry.
func (r *Resolver) CurrentSession() (Session, user.User, error) {
	r.mu.Lock()
	sess, prof := r.session, r.profile
	r.mu.Unlock()

	if sess.IsZero() {
		return Session{}, user.User{}, ErrNoSession
	}
	if sess.Expired() {
		r.clear()
		return Session{}, user.User{}, ErrSessionExpired
	}
	return sess, prof, nil
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.session.IsZero():
		return StateAuthenticated
	case len(r.inflight) > 0:
		return StateAuthenticating
	default:
		return StateUnauthenticated
	}
}

// OnSessionChange registers a callback fired after every commit or clear.
func (r *Resolver) OnSessionChange(fn SessionChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// resolveProfile resolves the profile for a freshly authenticated identity,
// synthesizing it lazily from sign-up metadata on a confirmed not-found
// (bridging the eventual-consistency race between account creation and
// profile-row creation).
func (r *Resolver) resolveProfile(ctx context.Context, ident Identity) (user.User, error) {
	pctx, cancel := context.WithTimeout(ctx, r.conf.Auth.ProfileTimeout)
	defer cancel()

	prof, err := r.profiles.GetByID(pctx, ident.ID)
	if err == nil {
		return prof, nil
	}

	if errors.Cause(err) == user.ErrNotFound {
		np := user.NewProfile{
			ID:    ident.ID,
			Email: ident.Email,
			Name:  ident.Name,
			Role:  ident.Role,
		}
		if np.Name == "" {
			np.Name = ident.Email
		}
		if np.Role == "" {
			np.Role = user.RoleStudent
		}
		prof, err = r.profiles.Create(pctx, np)
		if err == nil {
			return prof, nil
		}
		// lost a concurrent lazy-create race: the row exists now
		if _, ok := errors.Cause(err).(*core.ValidationError); ok {
			return r.profiles.GetByID(pctx, ident.ID)
		}
		return user.User{}, err
	}

	if r.fallback != nil {
		if fprof, ferr := r.fallback.Profile(ident.ID); ferr == nil {
			return fprof, nil
		}
	}
	return user.User{}, r.classify(err)
}

// classify maps a primary-provider failure to the typed error taxonomy.
func (r *Resolver) classify(err error) error {
	switch cause := errors.Cause(err); cause {
	case ErrInvalidCredentials, ErrNoSession, ErrSessionExpired, ErrIdentityNotFound:
		return cause
	case context.DeadlineExceeded:
		return ErrTimeout
	case context.Canceled:
		return err // caller-initiated cancellation propagates as-is
	default:
		if _, ok := cause.(*core.ValidationError); ok {
			return err
		}
		return errors.Wrapf(ErrTransient, "primary provider: %v", err)
	}
}

func (r *Resolver) begin(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[key] {
		return ErrBusy
	}
	r.inflight[key] = true
	return nil
}

func (r *Resolver) end(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}

func (r *Resolver) commit(sess Session, prof user.User) {
	r.mu.Lock()
	r.session = sess
	r.profile = prof
	fns := append([]SessionChangeFunc(nil), r.onChange...)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(sess, prof)
	}
}

func (r *Resolver) clear() {
	r.mu.Lock()
	r.session = Session{}
	r.profile = user.User{}
	fns := append([]SessionChangeFunc(nil), r.onChange...)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(Session{}, user.User{})
	}
}
