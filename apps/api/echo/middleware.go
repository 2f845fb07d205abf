package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/user"
)

const contextUserKey = "user"

// requireRole rejects requests without a valid bearer token carrying one of roles (any role if none).
// The resolved user is stored in the echo.Context.
func requireRole(guard *auth.Guard, roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			usr, err := guard.RequireRole(ctx.Request().Context(), header, roles...)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// optionalAuth lets anonymous requests through, but rejects a present and invalid bearer token.
func optionalAuth(guard *auth.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(ctx)
			}
			usr, _, err := guard.Authenticate(ctx.Request().Context(), header)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}

// contextUser returns the authenticated user, or nil for anonymous requests.
func contextUser(ctx echo.Context) *user.User {
	if usr, err := getContextUser(ctx); err == nil {
		return &usr
	}
	return nil
}

func noContent(ctx echo.Context) error {
	return ctx.NoContent(http.StatusNoContent)
}
