package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// errorResponse maps the core error taxonomy to an HTTP status and body.
// ok is false for errors that are not part of the taxonomy.
func errorResponse(err error) (code int, message interface{}, ok bool) {
	var (
		vErr        *core.ValidationError
		notFound    *core.NotFoundError
		permErr     *core.PermissionError
		conflict    *core.ConflictError
		capacity    *core.CapacityExceededError
		duplicate   *core.DuplicateError
		invalidStat *core.InvalidStateError
	)
	switch {
	case errors.As(err, &vErr):
		if vErr.Fields != nil {
			fldErrs := make(map[string]string, len(vErr.Fields))
			for _, fErr := range vErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs, true
		}
		return http.StatusBadRequest, vErr.Error(), true
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error(), true
	case errors.As(err, &permErr):
		return http.StatusForbidden, permErr.Error(), true
	case errors.As(err, &conflict):
		return http.StatusConflict, echo.Map{"error": conflict.Error(), "conflict": conflict.Kind}, true
	case errors.As(err, &capacity):
		return http.StatusConflict, echo.Map{
			"error":    capacity.Error(),
			"capacity": capacity.Capacity,
			"occupied": capacity.Occupied,
		}, true
	case errors.As(err, &duplicate):
		return http.StatusConflict, duplicate.Error(), true
	case errors.As(err, &invalidStat):
		return http.StatusConflict, echo.Map{"error": invalidStat.Error(), "state": invalidStat.State}, true
	}
	return 0, nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if c, m, ok := errorResponse(err); ok {
			code, message = c, m
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if actor, aErr := contextActor(ctx); aErr == nil {
					args = append(args, actor)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
