package echoapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/progress"
)

type progressApi struct {
	svc      progress.Service
	resolver *auth.Resolver
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:      deps.ProgressSvc,
		resolver: deps.Resolver,
	}
	instructor := instructorMiddleware(deps.Resolver)

	g.GET("/courses/:id/progress", api.courseProgress, jwt)

	lg := g.Group("/lessons", jwt)
	lg.POST("/:id/complete", api.completeLesson)
	lg.PUT("/:id/position", api.updatePosition)
	lg.GET("/:id/quiz", api.lessonQuiz)

	// instructor quiz authoring
	lg.PUT("/:id/quiz", api.saveQuiz, instructor)
	lg.DELETE("/:id/quiz", api.destroyQuiz, instructor)

	g.POST("/quizzes/:id/attempts", api.startAttempt, jwt)

	ag := g.Group("/attempts", jwt)
	ag.GET("", api.attempts)
	ag.POST("/:id/submit", api.submitAttempt)
}

// Handlers

func (api *progressApi) courseProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	pct, err := api.svc.CourseProgress(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing course progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{Progress: pct})
}

func (api *progressApi) completeLesson(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.MarkLessonComplete(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking lesson complete")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) updatePosition(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data PositionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PositionRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	rec, err := api.svc.UpdateLessonPosition(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Seconds)
	if err != nil {
		return errors.Wrap(err, "updating lesson position")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) lessonQuiz(ctx echo.Context) error {
	quiz, err := api.svc.QuizByLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding quiz by lesson")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *progressApi) saveQuiz(ctx echo.Context) error {
	var data progress.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}

	usr, err := getContextUser(ctx, api.resolver)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	quiz, err := api.svc.SaveQuiz(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "saving quiz")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *progressApi) destroyQuiz(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.resolver)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteQuiz(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) startAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	att, err := api.svc.StartAttempt(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *progressApi) submitAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// decode the body directly; echo's binder would also copy the :id path
	// param into the map
	sub := progress.Submission{}
	if err = json.NewDecoder(ctx.Request().Body).Decode(&sub); err != nil && err != io.EOF {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid submission payload")
	}

	att, err := api.svc.GradeAttempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject, sub)
	if err != nil {
		return errors.Wrap(err, "grading attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *progressApi) attempts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	atts, err := api.svc.Attempts(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if atts == nil {
		atts = []progress.Attempt{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

type (
	ProgressResponse struct {
		Progress int `json:"progress"` // [0,100]
	}

	PositionRequest struct {
		Seconds int `json:"seconds" validate:"gte=0"`
	}
)

func (pr *PositionRequest) Validate() error {
	return core.Validate.Struct(pr)
}
