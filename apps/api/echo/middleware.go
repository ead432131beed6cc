package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
)

// roleMiddleware only lets actors holding one of roles through.
func roleMiddleware(roles ...core.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := contextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(core.RoleAdmin)
}
