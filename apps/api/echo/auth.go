package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/account"
)

const contextIdentityKey = "identity"

var errUserGone = echo.NewHTTPError(http.StatusForbidden, account.ErrNotFound.Error())

// bearerToken extracts the token of an `Authorization: Bearer <token>` header.
func bearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// authenticate verifies the bearer token and loads the current identity on every request,
// so deactivations and role changes apply to tokens issued before them.
func authenticate(svc *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tok, ok := bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return errNoToken
			}
			idt, err := svc.Authenticate(ctx.Request().Context(), tok)
			if err != nil {
				if errors.Cause(err) == account.ErrNotFound {
					return errUserGone
				}
				return err
			}
			ctx.Set(contextIdentityKey, idt)
			return next(ctx)
		}
	}
}

// authorize lets through identities holding one of the roles. It must run after authenticate.
func authorize(roles ...account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			idt, ok := contextIdentity(ctx)
			if !ok {
				return errNoToken
			}
			if hasAnyRole(idt, roles) {
				return next(ctx)
			}
			return account.ErrForbidden
		}
	}
}

func hasAnyRole(idt account.Identity, roles []account.Role) bool {
	for _, role := range roles {
		if idt.Account.Role == role || (role == account.RoleAdmin && idt.IsAdmin()) {
			return true
		}
	}
	return false
}

func contextIdentity(ctx echo.Context) (account.Identity, bool) {
	idt, ok := ctx.Get(contextIdentityKey).(account.Identity)
	return idt, ok
}

func getContextUser(ctx echo.Context) (account.Identity, error) {
	if idt, ok := contextIdentity(ctx); ok {
		return idt, nil
	}
	return account.Identity{}, errNoToken
}
