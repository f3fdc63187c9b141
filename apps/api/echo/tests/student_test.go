package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/edvora/edvora/apps/api/echo"
	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/chat"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/selection"
	testutil "github.com/edvora/edvora/tests"
)

func Test_studentApi_roleRequired(t *testing.T) {
	db.Reset()
	teacher := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	token := getToken(t, teacher.User)

	for _, path := range []string{
		"/v1/student/subjects", "/v1/student/teachers", "/v1/student/videos", "/v1/student/results",
		"/v1/student/performance", "/v1/student/dashboard", "/v1/student/chat",
	} {
		t.Run(path, func(t *testing.T) {
			tt := httpTest{path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
			checkCodeAndData(t, tt, tt.run(t))

			tt = httpTest{path: path, token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
			checkCodeAndData(t, tt, tt.run(t))
		})
	}
}

func Test_studentApi_selection(t *testing.T) {
	db.Reset()
	math := testutil.CreateSubject(t, catalogRepo, "Mathematics")
	physics := testutil.CreateSubject(t, catalogRepo, "Physics")
	chemistry := testutil.CreateSubject(t, catalogRepo, "Chemistry")
	turing := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	curie := testutil.CreateTeacher(t, usrRepo, "Marie Curie", "marie@test.io", pwd)
	student := testutil.CreateStudent(t, usrRepo, "Grace Hopper", "grace@test.io", pwd)
	classmate := testutil.CreateStudent(t, usrRepo, "Ada Lovelace", "ada@test.io", pwd)
	token := getToken(t, student.User)

	t0 := time.Now().UTC().Add(-time.Hour)
	v1 := testutil.CreateVideo(t, catalogRepo, "limits", math.ID, curie.ID, t0)
	v2 := testutil.CreateVideo(t, catalogRepo, "derivatives", math.ID, turing.ID, t0.Add(time.Minute))
	v3 := testutil.CreateVideo(t, catalogRepo, "optics", physics.ID, curie.ID, t0.Add(2*time.Minute))
	v4 := testutil.CreateVideo(t, catalogRepo, "atoms", chemistry.ID, turing.ID, t0.Add(3*time.Minute))

	videoIDs := func(t *testing.T) ([]string, map[string]selection.RecommendedVideo) {
		rec := httpTest{path: "/v1/student/videos", token: token}.run(t)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var videos []selection.RecommendedVideo
		unmarshal(t, rec, &videos)
		ids := make([]string, 0, len(videos))
		byID := make(map[string]selection.RecommendedVideo, len(videos))
		for _, v := range videos {
			ids = append(ids, v.ID)
			byID[v.ID] = v
		}
		return ids, byID
	}

	t.Run("nothing selected", func(t *testing.T) {
		tt := httpTest{path: "/v1/student/subjects", token: token, wantData: marchallObj(t, echoapi.SubjectSelectionResponse{
			SubjectIDs: []string{}, Subjects: []catalog.Subject{},
		})}
		checkCodeAndData(t, tt, tt.run(t))

		tt = httpTest{path: "/v1/student/teachers", token: token, wantData: marchallObj(t, echoapi.TeacherSelection{Teachers: map[string]string{}})}
		checkCodeAndData(t, tt, tt.run(t))

		// every video, newest first
		ids, _ := videoIDs(t)
		assert.Equal(t, []string{v4.ID, v3.ID, v2.ID, v1.ID}, ids)
	})

	t.Run("unknown subject", func(t *testing.T) {
		unknown := "4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1"
		tt := httpTest{
			method: http.MethodPut, path: "/v1/student/subjects", token: token,
			body:     marchallObj(t, echoapi.SubjectSelectionRequest{SubjectIDs: []string{math.ID, unknown}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_ids": fmt.Sprintf("unknown subject %q", unknown)}),
		}
		checkCodeAndData(t, tt, tt.run(t))
	})

	saveSubjects := httpTest{
		method: http.MethodPut, path: "/v1/student/subjects", token: token,
		body: marchallObj(t, echoapi.SubjectSelectionRequest{SubjectIDs: []string{physics.ID, math.ID, physics.ID}}),
		wantData: marchallObj(t, echoapi.SubjectSelectionResponse{
			SubjectIDs: []string{physics.ID, math.ID},
			Subjects:   []catalog.Subject{math, physics},
		}),
	}
	t.Run("save subjects", func(t *testing.T) {
		checkCodeAndData(t, saveSubjects, saveSubjects.run(t))
	})
	t.Run("saving the same set twice is idempotent", func(t *testing.T) {
		checkCodeAndData(t, saveSubjects, saveSubjects.run(t))

		tt := httpTest{path: "/v1/student/subjects", token: token, wantData: saveSubjects.wantData}
		checkCodeAndData(t, tt, tt.run(t))
	})

	t.Run("videos of selected subjects", func(t *testing.T) {
		ids, _ := videoIDs(t)
		assert.Equal(t, []string{v3.ID, v2.ID, v1.ID}, ids)
	})

	t.Run("teacher pick must be a teacher", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/student/teachers", token: token,
			body:     marchallObj(t, echoapi.TeacherSelection{Teachers: map[string]string{math.ID: classmate.ID}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"teachers": fmt.Sprintf("unknown teacher %q", classmate.ID)}),
		}
		checkCodeAndData(t, tt, tt.run(t))
	})

	t.Run("preferred teacher first", func(t *testing.T) {
		picks := map[string]string{math.ID: turing.ID, physics.ID: ""}
		tt := httpTest{
			method: http.MethodPut, path: "/v1/student/teachers", token: token,
			body:     marchallObj(t, echoapi.TeacherSelection{Teachers: picks}),
			wantData: marchallObj(t, echoapi.TeacherSelection{Teachers: map[string]string{math.ID: turing.ID}}),
		}
		checkCodeAndData(t, tt, tt.run(t))

		ids, byID := videoIDs(t)
		assert.Equal(t, []string{v2.ID, v3.ID, v1.ID}, ids)
		assert.True(t, byID[v2.ID].PreferredTeacher)
		assert.False(t, byID[v3.ID].PreferredTeacher)
		assert.Equal(t, "Alan Turing", byID[v2.ID].TeacherName.String)
		assert.Equal(t, "Mathematics", byID[v2.ID].SubjectName.String)
	})

	t.Run("selections are per student", func(t *testing.T) {
		tt := httpTest{path: "/v1/student/subjects", token: getToken(t, classmate.User), wantData: marchallObj(t, echoapi.SubjectSelectionResponse{
			SubjectIDs: []string{}, Subjects: []catalog.Subject{},
		})}
		checkCodeAndData(t, tt, tt.run(t))
	})
}

func Test_studentApi_progress(t *testing.T) {
	db.Reset()
	math := testutil.CreateSubject(t, catalogRepo, "Mathematics")
	turing := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	student := testutil.CreateStudent(t, usrRepo, "Grace Hopper", "grace@test.io", pwd)
	token := getToken(t, student.User)

	video := testutil.CreateVideo(t, catalogRepo, "limits", math.ID, turing.ID)
	quiz := testutil.CreateQuiz(t, catalogRepo, "Algebra", math.ID, turing.ID, "a", "b", "c", "d")
	empty := testutil.CreateQuiz(t, catalogRepo, "Empty", math.ID, turing.ID)

	t.Run("complete video", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown video", path: "/v1/student/videos/4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1/complete",
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "video not found"}),
			},
			{
				name: "invalid feedback", path: "/v1/student/videos/" + video.ID + "/complete",
				body:     marchallObj(t, progress.CompleteVideo{DifficultyFeedback: "boring"}),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"difficulty_feedback": "difficulty_feedback must be one of: easy, medium, hard"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.token = http.MethodPost, token
				checkCodeAndData(t, tt, tt.run(t))
			})
		}

		for _, feedback := range []string{"HARD", "easy"} { // completing again replaces the feedback
			tt := httpTest{
				method: http.MethodPost, path: "/v1/student/videos/" + video.ID + "/complete", token: token,
				body: marchallObj(t, progress.CompleteVideo{DifficultyFeedback: feedback}),
			}
			rec := tt.run(t)
			checkCode(t, tt, rec)
			var vp progress.VideoProgress
			unmarshal(t, rec, &vp)
			assert.True(t, vp.Completed)
			assert.Equal(t, video.ID, vp.VideoID)
		}

		rec := httpTest{path: "/v1/student/videos", token: token}.run(t)
		var videos []selection.RecommendedVideo
		unmarshal(t, rec, &videos)
		require.Len(t, videos, 1)
		assert.True(t, videos[0].Completed)
	})

	q := quiz.Questions
	t.Run("submit quiz", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown quiz", path: "/v1/student/quizzes/nope/submit",
				body:     marchallObj(t, progress.QuizSubmission{Answers: map[string]string{}}),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "quiz not found"}),
			},
			{
				name: "quiz without questions", path: "/v1/student/quizzes/" + empty.ID + "/submit",
				body:     marchallObj(t, progress.QuizSubmission{Answers: map[string]string{}}),
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: progress.ErrEmptyQuiz.Error()}),
			},
			{
				name: "unknown question", path: "/v1/student/quizzes/" + quiz.ID + "/submit",
				body:     marchallObj(t, progress.QuizSubmission{Answers: map[string]string{"elsewhere": "a"}}),
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"answers": `unknown question "elsewhere"`}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.token = http.MethodPost, token
				checkCodeAndData(t, tt, tt.run(t))
			})
		}

		minutes := 7
		tt := httpTest{
			method: http.MethodPost, path: "/v1/student/quizzes/" + quiz.ID + "/submit", token: token,
			body: marchallObj(t, progress.QuizSubmission{
				// q[3] unanswered
				Answers:          map[string]string{q[0].ID: "A", q[1].ID: "b", q[2].ID: "a"},
				TimeTakenMinutes: &minutes,
			}),
			wantCode: http.StatusCreated,
		}
		rec := tt.run(t)
		checkCode(t, tt, rec)
		var res progress.QuizResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.Score)
		assert.Equal(t, 4, res.TotalQuestions)
		assert.Equal(t, 7, res.TimeTakenMinutes.Int)
		assert.Equal(t, student.ID, res.StudentID)
	})

	t.Run("results", func(t *testing.T) {
		rec := httpTest{path: "/v1/student/results", token: token}.run(t)
		require.Equal(t, http.StatusOK, rec.Code)
		var results []progress.ResultDetail
		unmarshal(t, rec, &results)
		require.Len(t, results, 1)
		assert.Equal(t, "Algebra", results[0].QuizTitle)
		assert.Equal(t, "Mathematics", results[0].SubjectName.String)
	})

	t.Run("performance", func(t *testing.T) {
		rec := httpTest{path: "/v1/student/performance", token: token}.run(t)
		require.Equal(t, http.StatusOK, rec.Code)
		var sum analytics.Summary
		unmarshal(t, rec, &sum)
		assert.Equal(t, 1, sum.TotalTests)
		assert.Equal(t, 50, sum.AverageScore)
		assert.Equal(t, 50, sum.HighestScore)
		assert.Equal(t, 0, sum.Improvement)
		assert.Equal(t, 1, sum.VideosCompleted)
		require.Len(t, sum.Subjects, 1)
		assert.Equal(t, analytics.SubjectSummary{
			SubjectID: math.ID, Name: "Mathematics", Icon: math.Icon, AverageScore: 50, TestCount: 1,
		}, sum.Subjects[0])
		require.Len(t, sum.RecentTests, 1)
		assert.Equal(t, analytics.BandLow, sum.RecentTests[0].Band)
	})

	t.Run("dashboard", func(t *testing.T) {
		tt := httpTest{path: "/v1/student/dashboard", token: token, wantData: marchallObj(t, analytics.StudentDashboard{
			VideosWatched: 1, AverageScore: 50, TestsTaken: 1, Streak: 1, DailyGoal: 30,
		})}
		checkCodeAndData(t, tt, tt.run(t))
	})
}

func Test_studentApi_chat(t *testing.T) {
	db.Reset()
	student := testutil.CreateStudent(t, usrRepo, "Grace Hopper", "grace@test.io", pwd)
	token := getToken(t, student.User)

	history := func(t *testing.T, query string) []chat.Message {
		rec := httpTest{path: "/v1/student/chat" + query, token: token}.run(t)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var msgs []chat.Message
		unmarshal(t, rec, &msgs)
		return msgs
	}

	msgs := history(t, "")
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleAssistant, msgs[0].Role)
	assert.Equal(t, chat.Greeting, msgs[0].Content)

	tt := httpTest{
		method: http.MethodPost, path: "/v1/student/chat", token: token,
		body: marchallObj(t, chat.NewMessage{Content: "   "}), wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
	}
	checkCodeAndData(t, tt, tt.run(t))

	for _, text := range []string{"How do I improve my SCORE?", "hello there"} {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/student/chat", token: token,
			body: marchallObj(t, chat.NewMessage{Content: text}), wantCode: http.StatusCreated,
		}
		rec := tt.run(t)
		checkCode(t, tt, rec)
		var ex chat.Exchange
		unmarshal(t, rec, &ex)
		assert.Equal(t, text, ex.Question.Content)
		assert.Equal(t, chat.Respond(text), ex.Reply.Content)
	}

	msgs = history(t, "")
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{chat.RoleUser, chat.RoleAssistant, chat.RoleUser, chat.RoleAssistant},
		[]string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role})
	assert.Equal(t, chat.Respond("How do I improve my SCORE?"), msgs[1].Content)

	msgs = history(t, "?limit=1")
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.Respond("hello there"), msgs[0].Content)
}
