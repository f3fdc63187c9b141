package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

const thumbnailField = "file"

type teacherApi struct {
	catalogSvc   catalog.ServiceInterface
	analyticsSvc analytics.ServiceInterface
	validate     *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := teacherApi{
		catalogSvc:   deps.CatalogSvc,
		analyticsSvc: deps.AnalyticsSvc,
		validate:     deps.Validate,
	}

	tg := g.Group("/teacher", jwt, roleMiddleware(user.RoleTeacher))
	tg.GET("/dashboard", api.dashboard)
	tg.GET("/videos", api.queryVideos)
	tg.POST("/videos", api.createVideo)
	tg.POST("/videos/:id/thumbnail", api.uploadThumbnail)
	tg.GET("/quizzes", api.queryQuizzes)
	tg.POST("/quizzes", api.createQuiz)
}

func (api *teacherApi) dashboard(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	dash, err := api.analyticsSvc.TeacherDashboard(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "building teacher dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

// queryVideos lists the teacher's own videos, newest first unless ordered otherwise.
func (api *teacherApi) queryVideos(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	videos, err := api.catalogSvc.ListVideos(ctx.Request().Context(), catalog.VideoFilter{
		TeacherID: id,
		Orderings: ordering.Orderings,
	})
	if err != nil {
		return errors.Wrap(err, "listing videos")
	}
	if videos == nil {
		videos = []catalog.VideoDetail{}
	}
	return ctx.JSON(http.StatusOK, videos)
}

func (api *teacherApi) createVideo(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data catalog.NewVideo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVideo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.catalogSvc.AddVideo(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "adding video")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *teacherApi) uploadThumbnail(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile(thumbnailField)
	if err != nil {
		return core.NewFieldValidationError(thumbnailField, "a thumbnail image is required")
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening thumbnail")
	}
	defer file.Close()

	v, err := api.catalogSvc.UploadThumbnail(
		ctx.Request().Context(), id, ctx.Param("id"), file, fh.Size, fh.Header.Get(echo.HeaderContentType),
	)
	if err != nil {
		return errors.Wrap(err, "uploading thumbnail")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *teacherApi) queryQuizzes(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.catalogSvc.ListQuizzes(ctx.Request().Context(), catalog.QuizFilter{
		SubjectID: ctx.QueryParam("subject_id"),
		CreatedBy: id,
	})
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *teacherApi) createQuiz(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data catalog.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qd, err := api.catalogSvc.AddQuiz(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "adding quiz")
	}
	return ctx.JSON(http.StatusCreated, qd)
}
