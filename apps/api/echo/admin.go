package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/user"
)

type adminApi struct {
	svc      *user.Service
	validate *validator.Validate
}

// registerAdminAPI expects g to be restricted to admins.
func registerAdminAPI(g *echo.Group, deps *Deps) {
	api := adminApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	g.GET("/users", api.query)
	g.POST("/users", api.create)
	g.DELETE("/users/:id", api.destroy)
	g.GET("/roles", api.queryRoles)
}

// Handlers

func (api *adminApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, userOrderingFields)

	users, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) destroy(ctx echo.Context) error {
	admin, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), admin, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return noContent(ctx)
}

func (api *adminApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}
