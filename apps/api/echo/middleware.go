package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

// roleMiddleware resolves the authenticated profile and requires one of the
// given roles.
func roleMiddleware(resolver *auth.Resolver, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, resolver)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(resolver *auth.Resolver) echo.MiddlewareFunc {
	return roleMiddleware(resolver, user.RoleAdmin)
}

// instructorMiddleware admits instructors and admins; per-course ownership is
// enforced by the course service.
func instructorMiddleware(resolver *auth.Resolver) echo.MiddlewareFunc {
	return roleMiddleware(resolver, user.RoleInstructor, user.RoleAdmin)
}
