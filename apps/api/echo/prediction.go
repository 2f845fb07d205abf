package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
)

const predictionSuccess = "Prediction successful"

type predictionApi struct {
	svc      *prediction.Service
	validate *validator.Validate
}

func registerPredictionAPI(g *echo.Group, deps *Deps) {
	api := predictionApi{
		svc:      deps.PredictionSvc,
		validate: deps.Validate,
	}

	g.POST("/predict", api.predict, optionalAuth(deps.Guard))

	ag := g.Group("", requireRole(deps.Guard))
	ag.GET("/predictions/history", api.history)
	ag.GET("/score-students/history", api.rawInputHistory)
}

// Handlers

// predict scores the input; the prediction is recorded for authenticated callers.
func (api *predictionApi) predict(ctx echo.Context) error {
	var data PredictRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PredictRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.PredictForSelf(ctx.Request().Context(), contextUser(ctx), data.Input())
	if err != nil {
		return errors.Wrap(err, "predicting")
	}
	return ctx.JSON(http.StatusOK, PredictResponse{Message: predictionSuccess, Result: res})
}

func (api *predictionApi) history(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	var includeActing bool
	if v := ctx.QueryParam("includeActing"); v != "" {
		if includeActing, err = strconv.ParseBool(v); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "includeActing", Error: "invalid value"})
		}
	}

	res, err := api.svc.ListForSubject(ctx.Request().Context(), usr, includeActing, page)
	if err != nil {
		return errors.Wrap(err, "listing predictions")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *predictionApi) rawInputHistory(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.ListRawInputs(ctx.Request().Context(), usr, page)
	if err != nil {
		return errors.Wrap(err, "listing raw inputs")
	}
	return ctx.JSON(http.StatusOK, res)
}
