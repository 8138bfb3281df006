package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
)

const imageField = "image"

type accountApi struct {
	svc     *account.Service
	metrics *metrics
}

func registerAccountAPI(g *echo.Group, authn echo.MiddlewareFunc, svc *account.Service, m *metrics) {
	api := accountApi{svc: svc, metrics: m}

	ag := g.Group("/auth")
	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.GET("/me", api.me, authn)
	ag.POST("/upgrade-to-admin", api.upgradeToAdmin, authn)

	g.PATCH("/accounts/:id", api.setActive, authn, authorize(account.RoleAdmin))
}

type userResponse struct {
	User account.PublicAccount `json:"user"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}

	var img *core.Upload
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(imageField)
		switch {
		case err == nil:
			f, err := fh.Open()
			if err != nil {
				return errors.Wrap(err, "opening uploaded image")
			}
			defer func() { _ = f.Close() }()
			img = &core.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Content:     f,
			}
		case errors.Is(err, http.ErrMissingFile):
		default:
			return errInvalidBody
		}
	}

	res, err := api.svc.Register(ctx.Request().Context(), data, img)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	api.metrics.registrations.WithLabelValues(string(res.User.Role)).Inc()
	return ctx.JSON(http.StatusCreated, res)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data account.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}

	res, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			api.metrics.logins.WithLabelValues("invalid_credentials").Inc()
		case account.ErrAccountInactive:
			api.metrics.logins.WithLabelValues("inactive").Inc()
		}
		return errors.Wrap(err, "logging in")
	}
	api.metrics.logins.WithLabelValues("success").Inc()
	return ctx.JSON(http.StatusOK, res)
}

func (api *accountApi) me(ctx echo.Context) error {
	idt, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, userResponse{User: idt.Public()})
}

func (api *accountApi) upgradeToAdmin(ctx echo.Context) error {
	idt, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data account.PromoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}

	res, err := api.svc.PromoteToAdmin(ctx.Request().Context(), idt, data)
	if err != nil {
		return errors.Wrap(err, "promoting to admin")
	}
	api.metrics.promotions.Inc()
	return ctx.JSON(http.StatusOK, res)
}

func (api *accountApi) setActive(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data setActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	if data.IsActive == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "is_active", Error: "this field is required"})
	}

	idt, err := api.svc.SetActive(ctx.Request().Context(), actor, ctx.Param("id"), *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting account activity")
	}
	return ctx.JSON(http.StatusOK, userResponse{User: idt.Public()})
}
