package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

type catalogApi struct {
	svc     catalog.ServiceInterface
	userSvc user.ServiceInterface
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc catalog.ServiceInterface, userSvc user.ServiceInterface) {
	api := catalogApi{svc: svc, userSvc: userSvc}

	// public: the signup & selection screens list them
	g.GET("/subjects", api.querySubjects)
	g.GET("/subjects/:id", api.retrieveSubject)
	g.GET("/teachers", api.queryTeachers)

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.queryQuizzes)
	qg.GET("/:id", api.retrieveQuiz)
}

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.ListSubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) retrieveSubject(ctx echo.Context) error {
	subj, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *catalogApi) queryTeachers(ctx echo.Context) error {
	filter := user.TeacherFilter{
		Specialization: ctx.QueryParam("specialization"),
		ActiveOnly:     true,
	}
	teachers, err := api.userSvc.ListTeachers(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing teachers")
	}
	if teachers == nil {
		teachers = []user.Account{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *catalogApi) queryQuizzes(ctx echo.Context) error {
	var filter catalog.QuizFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Quiz{})
	}
	quizzes, err := api.svc.ListQuizzes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

// retrieveQuiz hides the answers from everyone but the quiz author.
func (api *catalogApi) retrieveQuiz(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	qd, err := api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	if !(claims.Role == user.RoleTeacher && qd.CreatedBy.String == claims.Subject) {
		qd = qd.WithoutAnswers()
	}
	return ctx.JSON(http.StatusOK, qd)
}
