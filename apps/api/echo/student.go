package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/chat"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/selection"
	"github.com/edvora/edvora/core/user"
)

type studentApi struct {
	selectionSvc selection.ServiceInterface
	progressSvc  progress.ServiceInterface
	analyticsSvc analytics.ServiceInterface
	chatSvc      chat.ServiceInterface
	validate     *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := studentApi{
		selectionSvc: deps.SelectionSvc,
		progressSvc:  deps.ProgressSvc,
		analyticsSvc: deps.AnalyticsSvc,
		chatSvc:      deps.ChatSvc,
		validate:     deps.Validate,
	}

	sg := g.Group("/student", jwt, roleMiddleware(user.RoleStudent))

	// selection steps
	sg.GET("/subjects", api.retrieveSubjects)
	sg.PUT("/subjects", api.saveSubjects)
	sg.GET("/teachers", api.retrieveTeachers)
	sg.PUT("/teachers", api.saveTeachers)
	sg.GET("/videos", api.queryVideos)

	// progress
	sg.POST("/videos/:id/complete", api.completeVideo)
	sg.POST("/quizzes/:id/submit", api.submitQuiz)
	sg.GET("/results", api.queryResults)

	// analytics
	sg.GET("/performance", api.performance)
	sg.GET("/dashboard", api.dashboard)

	// assistant
	sg.GET("/chat", api.chatHistory)
	sg.POST("/chat", api.sendChat)
}

type (
	SubjectSelectionRequest struct {
		SubjectIDs []string `json:"subject_ids"`
	}

	SubjectSelectionResponse struct {
		SubjectIDs []string          `json:"subject_ids"`
		Subjects   []catalog.Subject `json:"subjects"`
	}

	// TeacherSelection maps a subject id to the preferred teacher id.
	TeacherSelection struct {
		Teachers map[string]string `json:"teachers"`
	}
)

func (api *studentApi) subjectSelection(ctx echo.Context, studentID string) (SubjectSelectionResponse, error) {
	rctx := ctx.Request().Context()
	ids, err := api.selectionSvc.SubjectIDs(rctx, studentID)
	if err != nil {
		return SubjectSelectionResponse{}, errors.Wrap(err, "getting subject ids")
	}
	subjects, err := api.selectionSvc.SelectedSubjects(rctx, studentID)
	if err != nil {
		return SubjectSelectionResponse{}, errors.Wrap(err, "getting selected subjects")
	}
	return SubjectSelectionResponse{SubjectIDs: ids, Subjects: subjects}, nil
}

func (api *studentApi) retrieveSubjects(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	resp, err := api.subjectSelection(ctx, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *studentApi) saveSubjects(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data SubjectSelectionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectSelectionRequest")
	}

	if _, err = api.selectionSvc.SaveSubjects(ctx.Request().Context(), id, data.SubjectIDs); err != nil {
		return errors.Wrap(err, "saving subjects")
	}
	resp, err := api.subjectSelection(ctx, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *studentApi) retrieveTeachers(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	picks, err := api.selectionSvc.TeacherPicks(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting teacher picks")
	}
	return ctx.JSON(http.StatusOK, TeacherSelection{Teachers: picks})
}

func (api *studentApi) saveTeachers(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data TeacherSelection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherSelection")
	}

	picks, err := api.selectionSvc.SaveTeachers(ctx.Request().Context(), id, data.Teachers)
	if err != nil {
		return errors.Wrap(err, "saving teachers")
	}
	return ctx.JSON(http.StatusOK, TeacherSelection{Teachers: picks})
}

func (api *studentApi) queryVideos(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	videos, err := api.selectionSvc.RecommendedVideos(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting recommended videos")
	}
	return ctx.JSON(http.StatusOK, videos)
}

func (api *studentApi) completeVideo(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data progress.CompleteVideo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteVideo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	vp, err := api.progressSvc.CompleteVideo(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "completing video")
	}
	return ctx.JSON(http.StatusOK, vp)
}

func (api *studentApi) submitQuiz(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data progress.QuizSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.progressSvc.SubmitQuiz(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studentApi) queryResults(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	results, err := api.progressSvc.Results(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "listing results")
	}
	if results == nil {
		results = []progress.ResultDetail{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *studentApi) performance(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	sum, err := api.analyticsSvc.Performance(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "summarizing performance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	dash, err := api.analyticsSvc.StudentDashboard(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *studentApi) chatHistory(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.chatSvc.History(ctx.Request().Context(), id, bindLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "getting chat history")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *studentApi) sendChat(ctx echo.Context) error {
	id, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data chat.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ex, err := api.chatSvc.Send(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "sending chat message")
	}
	return ctx.JSON(http.StatusCreated, ex)
}
