package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
)

type classApi struct {
	svc *classroom.Service
}

func registerClassAPI(g *echo.Group, authn echo.MiddlewareFunc, svc *classroom.Service) {
	api := classApi{svc: svc}
	staff := authorize(account.RoleAdmin, account.RoleTeacher)

	g.POST("/classes", api.create, authn, staff)
	g.GET("/classes/:id", api.retrieve, authn)
	g.PUT("/students/:id/class", api.assign, authn, staff)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	var data classroom.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) assign(ctx echo.Context) error {
	var data classroom.Assignment
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	placement, err := api.svc.AssignStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning student")
	}
	return ctx.JSON(http.StatusOK, placement)
}
