package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

const (
	jwtContextKey  = "userToken"
	contextUserKey = "user"
)

// newAppJWTConfig is the JWT auth middleware config; tokens are the access
// tokens minted by the local identity provider.
func newAppJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(auth.Claims),
	}
}

func getContextClaims(ctx echo.Context) (auth.Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok && !claims.Refresh {
			return *claims, nil
		}
	}
	return auth.Claims{}, errUnauthenticated
}

// getContextUser resolves the authenticated user's profile, cached on the
// request context.
func getContextUser(ctx echo.Context, resolver *auth.Resolver) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := resolver.ResolveProfile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "resolving profile")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

type authApi struct {
	resolver *auth.Resolver
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{resolver: deps.Resolver}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/register", api.register)
	ag.POST("/token-refresh", api.refreshToken)

	// authed endpoints
	ag.POST("/logout", api.logout, jwt)
	ag.GET("/session", api.session, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data auth.Credential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credential")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, usr, err := api.resolver.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: sess, User: usr})
}

func (api *authApi) register(ctx echo.Context) error {
	var data auth.Register
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Register")
	}

	usr, err := api.resolver.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, usr, err := api.resolver.Bootstrap(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: sess, User: usr})
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.resolver.Logout(ctx.Request().Context()); err != nil {
		// local state is already cleared; log and move on
		ctx.Logger().Errorf("%+v", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) session(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	usr, err := api.resolver.ResolveProfile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "resolving profile")
	}
	return ctx.JSON(http.StatusOK, SessionInfoResponse{
		User:      usr,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	})
}

type (
	SessionResponse struct {
		Session auth.Session `json:"session"`
		User    user.User    `json:"user"`
	}

	SessionInfoResponse struct {
		User      user.User `json:"user"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
)

func (rr *RefreshRequest) Validate() error {
	rr.RefreshToken = core.CleanString(rr.RefreshToken)
	return core.Validate.Struct(rr)
}
