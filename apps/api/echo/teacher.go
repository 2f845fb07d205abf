package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/prediction"
)

type teacherApi struct {
	svc      *prediction.Service
	validate *validator.Validate
}

// registerTeacherAPI expects g to be restricted to teachers.
func registerTeacherAPI(g *echo.Group, deps *Deps) {
	api := teacherApi{
		svc:      deps.PredictionSvc,
		validate: deps.Validate,
	}

	g.GET("/students", api.students)
	g.POST("/predict", api.predict)
	g.POST("/save-scores", api.saveScores)
	g.GET("/all-scores", api.allScores)
	g.GET("/prediction-history", api.predictionHistory)
	g.DELETE("/prediction/:id", api.deletePrediction)
}

// Handlers

func (api *teacherApi) students(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	students, err := api.svc.ClassOverview(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) predict(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data StudentPredictRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentPredictRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.PredictForStudent(ctx.Request().Context(), teacher, data.StudentID, data.Input())
	if err != nil {
		return errors.Wrap(err, "predicting for student")
	}
	return ctx.JSON(http.StatusOK, PredictResponse{Message: predictionSuccess, Result: res})
}

func (api *teacherApi) saveScores(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data StudentPredictRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentPredictRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.SaveRawInput(ctx.Request().Context(), teacher, data.StudentID, data.Input())
	if err != nil {
		return errors.Wrap(err, "saving raw input")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *teacherApi) allScores(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, err := api.svc.ListRawInputsByActor(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "listing raw inputs")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *teacherApi) predictionHistory(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, err := api.svc.ListByActor(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "listing predictions")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *teacherApi) deletePrediction(ctx echo.Context) error {
	teacher, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteOwned(ctx.Request().Context(), teacher, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting prediction")
	}
	return noContent(ctx)
}
