package tests

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/edvora/edvora/apps/api/echo"
	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/progress"
	testutil "github.com/edvora/edvora/tests"
)

func newThumbnailRequest(t *testing.T, path, token, contentType string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="thumb"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_teacherApi_roleRequired(t *testing.T) {
	db.Reset()
	student := testutil.CreateStudent(t, usrRepo, "Grace Hopper", "grace@test.io", pwd)
	token := getToken(t, student.User)

	for _, path := range []string{"/v1/teacher/dashboard", "/v1/teacher/videos", "/v1/teacher/quizzes"} {
		t.Run(path, func(t *testing.T) {
			tt := httpTest{path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
			checkCodeAndData(t, tt, tt.run(t))

			tt = httpTest{path: path, token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
			checkCodeAndData(t, tt, tt.run(t))
		})
	}
}

func Test_teacherApi_videos(t *testing.T) {
	db.Reset()
	math := testutil.CreateSubject(t, catalogRepo, "Mathematics")
	turing := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	curie := testutil.CreateTeacher(t, usrRepo, "Marie Curie", "marie@test.io", pwd)
	token := getToken(t, turing.User)

	t0 := time.Now().UTC().Add(-time.Hour)
	limits := testutil.CreateVideo(t, catalogRepo, "limits", math.ID, turing.ID, t0)
	testutil.CreateVideo(t, catalogRepo, "optics", math.ID, curie.ID, t0.Add(time.Minute))

	var created catalog.Video
	t.Run("create", func(t *testing.T) {
		tests := []httpTest{
			{
				name:     "missing fields",
				body:     marchallObj(t, catalog.NewVideo{}),
				wantData: marchallObj(t, map[string]string{"title": "this field is required", "video_url": "this field is required", "subject_id": "this field is required"}),
			},
			{
				name:     "invalid difficulty",
				body:     marchallObj(t, catalog.NewVideo{Title: "Series", VideoURL: "https://videos.test/series", SubjectID: math.ID, Difficulty: "extreme"}),
				wantData: marchallObj(t, map[string]string{"difficulty": "difficulty must be one of: easy, medium, hard"}),
			},
			{
				name: "unknown subject",
				body: marchallObj(t, catalog.NewVideo{
					Title: "Series", VideoURL: "https://videos.test/series", SubjectID: "4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1",
				}),
				wantData: marchallObj(t, map[string]string{"subject_id": `unknown subject "4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1"`}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.path, tt.token, tt.wantCode = http.MethodPost, "/v1/teacher/videos", token, http.StatusBadRequest
				checkCodeAndData(t, tt, tt.run(t))
			})
		}

		t.Run("invalid url", func(t *testing.T) {
			tt := httpTest{
				method: http.MethodPost, path: "/v1/teacher/videos", token: token,
				body:     marchallObj(t, catalog.NewVideo{Title: "Series", VideoURL: "not a url", SubjectID: math.ID}),
				wantCode: http.StatusBadRequest,
			}
			rec := tt.run(t)
			checkCode(t, tt, rec)
			var errs map[string]string
			unmarshal(t, rec, &errs)
			assert.Contains(t, errs, "video_url")
		})

		tt := httpTest{
			method: http.MethodPost, path: "/v1/teacher/videos", token: token,
			body: marchallObj(t, catalog.NewVideo{
				Title: "  Series ", VideoURL: "https://videos.test/series", SubjectID: math.ID,
				Difficulty: "Medium", DurationMinutes: 25,
			}),
			wantCode: http.StatusCreated,
		}
		rec := tt.run(t)
		checkCode(t, tt, rec)
		unmarshal(t, rec, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Series", created.Title)
		assert.Equal(t, "medium", created.Difficulty.String)
		assert.Equal(t, turing.ID, created.TeacherID.String)
		assert.Equal(t, 25, created.DurationMinutes.Int)
	})

	t.Run("own videos only", func(t *testing.T) {
		list := func(t *testing.T, query string) []string {
			rec := httpTest{path: "/v1/teacher/videos" + query, token: token}.run(t)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var videos []catalog.VideoDetail
			unmarshal(t, rec, &videos)
			titles := make([]string, 0, len(videos))
			for _, v := range videos {
				titles = append(titles, v.Title)
			}
			return titles
		}
		assert.Equal(t, []string{"Series", "limits"}, list(t, ""))
		assert.Equal(t, []string{"Series", "limits"}, list(t, "?ordering=title"))
		assert.Equal(t, []string{"limits", "Series"}, list(t, "?ordering=-title"))
		assert.Equal(t, []string{"limits", "Series"}, list(t, "?ordering=created_at"))
	})

	t.Run("thumbnail", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\nfake")
		post := func(videoID, tok, contentType string, data []byte) *httptest.ResponseRecorder {
			req, rec := newThumbnailRequest(t, fmt.Sprintf("/v1/teacher/videos/%s/thumbnail", videoID), tok, contentType, data)
			app.ServeHTTP(rec, req)
			return rec
		}

		tests := []struct {
			name     string
			rec      *httptest.ResponseRecorder
			wantCode int
			wantData []byte
		}{
			{
				name:     "missing file",
				rec:      post(limits.ID, token, "", nil),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"file": "a thumbnail image is required"}),
			},
			{
				name:     "not an image",
				rec:      post(limits.ID, token, "application/pdf", []byte("%PDF")),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"file": "thumbnail must be a jpeg, png or webp image"}),
			},
			{
				name:     "unknown video",
				rec:      post("4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1", token, "image/png", png),
				wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: "video not found"}),
			},
			{
				name:     "someone else's video",
				rec:      post(limits.ID, getToken(t, curie.User), "image/png", png),
				wantCode: http.StatusForbidden,
				wantData: marchallObj(t, httpErr{Error: catalog.ErrNotOwner.Error()}),
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				checkCodeAndData(t, httpTest{wantCode: tc.wantCode, wantData: tc.wantData}, tc.rec)
			})
		}

		rec := post(limits.ID, token, "image/png", png)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var v catalog.Video
		unmarshal(t, rec, &v)
		object := "videos/" + limits.ID + "/thumbnail.png"
		assert.Equal(t, "https://cdn.test/"+object, v.ThumbnailURL.String)
		data, ok := store.get(object)
		require.True(t, ok)
		assert.Equal(t, png, data)
	})
}

func Test_teacherApi_quizzes(t *testing.T) {
	db.Reset()
	math := testutil.CreateSubject(t, catalogRepo, "Mathematics")
	turing := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	curie := testutil.CreateTeacher(t, usrRepo, "Marie Curie", "marie@test.io", pwd)
	token := getToken(t, turing.User)
	testutil.CreateQuiz(t, catalogRepo, "Optics", math.ID, curie.ID, "a")

	question := catalog.NewQuestion{
		QuestionText: "2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22",
		CorrectOption: " B ", Explanation: "basic arithmetic",
	}

	tests := []httpTest{
		{
			name:     "no questions",
			body:     marchallObj(t, map[string]string{"title": "Algebra", "subject_id": math.ID}),
			wantData: marchallObj(t, map[string]string{"questions": "this field is required"}),
		},
		{
			name: "invalid correct option",
			body: marchallObj(t, catalog.NewQuiz{Title: "Algebra", SubjectID: math.ID, Questions: []catalog.NewQuestion{{
				QuestionText: "2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectOption: "e",
			}}}),
			wantData: marchallObj(t, map[string]string{"correct_option": "correct_option must be one of: a, b, c, d"}),
		},
		{
			name:     "unknown subject",
			body:     marchallObj(t, catalog.NewQuiz{Title: "Algebra", SubjectID: "4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1", Questions: []catalog.NewQuestion{question}}),
			wantData: marchallObj(t, map[string]string{"subject_id": `unknown subject "4d7c2f4e-9e55-4c8a-9bb8-1c22c9b5e0d1"`}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path, tt.token, tt.wantCode = http.MethodPost, "/v1/teacher/quizzes", token, http.StatusBadRequest
			checkCodeAndData(t, tt, tt.run(t))
		})
	}

	tt := httpTest{
		method: http.MethodPost, path: "/v1/teacher/quizzes", token: token,
		body: marchallObj(t, catalog.NewQuiz{
			Title: "Algebra", SubjectID: math.ID, Difficulty: "easy", TimeLimitMinutes: 15,
			Questions: []catalog.NewQuestion{question, question},
		}),
		wantCode: http.StatusCreated,
	}
	rec := tt.run(t)
	checkCode(t, tt, rec)
	var qd catalog.QuizDetail
	unmarshal(t, rec, &qd)
	assert.Equal(t, turing.ID, qd.CreatedBy.String)
	assert.Equal(t, 2, qd.QuestionCount)
	require.Len(t, qd.Questions, 2)
	assert.Equal(t, "b", qd.Questions[0].CorrectOption)
	assert.Equal(t, []int{1, 2}, []int{qd.Questions[0].QuestionOrder, qd.Questions[1].QuestionOrder})

	t.Run("own quizzes only", func(t *testing.T) {
		tt := httpTest{path: "/v1/teacher/quizzes", token: token, wantData: marchallList(t, qd.Quiz)}
		checkCodeAndData(t, tt, tt.run(t))
	})
}

func Test_teacherApi_dashboard(t *testing.T) {
	db.Reset()
	math := testutil.CreateSubject(t, catalogRepo, "Mathematics")
	turing := testutil.CreateTeacher(t, usrRepo, "Alan Turing", "alan@test.io", pwd)
	token := getToken(t, turing.User)

	t.Run("empty", func(t *testing.T) {
		tt := httpTest{path: "/v1/teacher/dashboard", token: token, wantData: marchallObj(t, analytics.TeacherDashboard{})}
		checkCodeAndData(t, tt, tt.run(t))
	})

	testutil.CreateVideo(t, catalogRepo, "limits", math.ID, turing.ID)
	quiz := testutil.CreateQuiz(t, catalogRepo, "Algebra", math.ID, turing.ID, "a", "b")

	for i, answer := range []string{"a", "c"} {
		student := testutil.CreateStudent(t, usrRepo, fmt.Sprintf("Student %d", i), fmt.Sprintf("student%d@test.io", i), pwd)
		studentToken := getToken(t, student.User)

		if i == 0 {
			tt := httpTest{
				method: http.MethodPut, path: "/v1/student/teachers", token: studentToken,
				body: marchallObj(t, echoapi.TeacherSelection{Teachers: map[string]string{math.ID: turing.ID}}),
			}
			checkCode(t, tt, tt.run(t))
		}

		tt := httpTest{
			method: http.MethodPost, path: "/v1/student/quizzes/" + quiz.ID + "/submit", token: studentToken,
			body:     marchallObj(t, progress.QuizSubmission{Answers: map[string]string{quiz.Questions[0].ID: answer, quiz.Questions[1].ID: "b"}}),
			wantCode: http.StatusCreated,
		}
		checkCode(t, tt, tt.run(t))
	}

	// 2/2 & 1/2
	tt := httpTest{path: "/v1/teacher/dashboard", token: token, wantData: marchallObj(t, analytics.TeacherDashboard{
		Students: 1, Videos: 1, Quizzes: 1, Results: 2, AverageScore: 75,
	})}
	checkCodeAndData(t, tt, tt.run(t))
}
