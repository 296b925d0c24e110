package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// schoolMiddleware restricts a token to the school it was issued for.
func schoolMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.SchoolID == "" || claims.SchoolID != ctx.Param(schoolParam) {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// editorMiddleware guards the endpoints that only timetable editors may reach.
// Slot edits are not guarded here: the engine checks the capability in its own order.
func editorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.CanEditTimetable {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
