package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/core/token"
)

var (
	errNoToken     = echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
	errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
)

// domainStatus maps domain errors to their HTTP status. Messages are the errors' own.
func domainStatus(err error) (int, bool) {
	switch err {
	case account.ErrDuplicateAccount, account.ErrEmptyPassword, account.ErrPasswordTooLong, classroom.ErrClassExists:
		return http.StatusBadRequest, true
	case account.ErrInvalidCredentials, token.ErrInvalidToken, token.ErrTokenExpired:
		return http.StatusUnauthorized, true
	case account.ErrAccountInactive, account.ErrForbidden:
		return http.StatusForbidden, true
	case account.ErrNotFound, classroom.ErrClassNotFound, classroom.ErrTeacherNotFound, classroom.ErrStudentNotFound:
		return http.StatusNotFound, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		var code int
		var message string

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.NewValidationError(nil, core.TranslateErrors(origErr, translator)...).Error()
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default:
			if status, ok := domainStatus(cause); ok {
				code = status
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(code)

			args := []interface{}{errors.Wrap(err, message)}
			if idt, ok := contextIdentity(ctx); ok {
				args = append(args, idt.Person())
			}
			logger.Error(message, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		var body interface{} = echo.Map{"error": message}
		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			body = echo.Map{"error": message, "debug": err.Error()}
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
