package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
)

// Difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Question options
const (
	OptionA = "a"
	OptionB = "b"
	OptionC = "c"
	OptionD = "d"
)

type Subject struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description null.String `json:"description" db:"description"`
	Icon        null.String `json:"icon" db:"icon"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

type Video struct {
	ID              string      `json:"id" db:"id"`
	Title           string      `json:"title" db:"title"`
	Description     null.String `json:"description" db:"description"`
	VideoURL        string      `json:"video_url" db:"video_url"`
	ThumbnailURL    null.String `json:"thumbnail_url" db:"thumbnail_url"`
	SubjectID       null.String `json:"subject_id" db:"subject_id"`
	TeacherID       null.String `json:"teacher_id" db:"teacher_id"`
	Difficulty      null.String `json:"difficulty" db:"difficulty"`
	DurationMinutes null.Int    `json:"duration_minutes" db:"duration_minutes"`
	Topic           null.String `json:"topic" db:"topic"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// VideoDetail is a Video with the names of its subject and teacher.
type VideoDetail struct {
	Video
	SubjectName null.String `json:"subject_name" db:"subject_name"`
	SubjectIcon null.String `json:"subject_icon" db:"subject_icon"`
	TeacherName null.String `json:"teacher_name" db:"teacher_name"`
}

type Quiz struct {
	ID               string      `json:"id" db:"id"`
	Title            string      `json:"title" db:"title"`
	SubjectID        null.String `json:"subject_id" db:"subject_id"`
	CreatedBy        null.String `json:"created_by" db:"created_by"`
	Difficulty       null.String `json:"difficulty" db:"difficulty"`
	Topic            null.String `json:"topic" db:"topic"`
	TimeLimitMinutes null.Int    `json:"time_limit_minutes" db:"time_limit_minutes"`
	QuestionCount    int         `json:"question_count" db:"question_count"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}

type Question struct {
	ID            string      `json:"id" db:"id"`
	QuizID        string      `json:"quiz_id" db:"quiz_id"`
	QuestionText  string      `json:"question_text" db:"question_text"`
	OptionA       string      `json:"option_a" db:"option_a"`
	OptionB       string      `json:"option_b" db:"option_b"`
	OptionC       string      `json:"option_c" db:"option_c"`
	OptionD       string      `json:"option_d" db:"option_d"`
	CorrectOption string      `json:"correct_option,omitempty" db:"correct_option"`
	Explanation   null.String `json:"explanation,omitempty" db:"explanation"`
	QuestionOrder int         `json:"question_order" db:"question_order"`
}

type QuizDetail struct {
	Quiz
	Questions []Question `json:"questions"`
}

// WithoutAnswers hides the correct options and explanations, for students taking the quiz.
func (qd QuizDetail) WithoutAnswers() QuizDetail {
	questions := make([]Question, len(qd.Questions))
	for i, q := range qd.Questions {
		q.CorrectOption = ""
		q.Explanation = null.String{}
		questions[i] = q
	}
	qd.Questions = questions
	return qd
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,notblank,max=80"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Icon        string `json:"icon" validate:"omitempty,max=16"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	ns.Icon = core.CleanString(ns.Icon)
	return validate.Struct(ns)
}

type NewVideo struct {
	Title           string `json:"title" validate:"required,notblank,max=200"`
	Description     string `json:"description" validate:"omitempty,max=5000"`
	VideoURL        string `json:"video_url" validate:"required,url"`
	SubjectID       string `json:"subject_id" validate:"required,uuid"`
	Difficulty      string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Topic           string `json:"topic" validate:"omitempty,max=120"`
}

func (nv *NewVideo) Validate(validate *validator.Validate) error {
	nv.Title = core.CleanString(nv.Title)
	nv.Description = core.CleanString(nv.Description)
	nv.VideoURL = core.CleanString(nv.VideoURL)
	nv.SubjectID = core.CleanString(nv.SubjectID, true /* lower */)
	nv.Difficulty = core.CleanString(nv.Difficulty, true /* lower */)
	nv.Topic = core.CleanString(nv.Topic)
	return validate.Struct(nv)
}

type NewQuestion struct {
	QuestionText  string `json:"question_text" validate:"required,notblank"`
	OptionA       string `json:"option_a" validate:"required,notblank"`
	OptionB       string `json:"option_b" validate:"required,notblank"`
	OptionC       string `json:"option_c" validate:"required,notblank"`
	OptionD       string `json:"option_d" validate:"required,notblank"`
	CorrectOption string `json:"correct_option" validate:"required,oneof=a b c d"`
	Explanation   string `json:"explanation" validate:"omitempty,max=2000"`
}

type NewQuiz struct {
	Title            string        `json:"title" validate:"required,notblank,max=200"`
	SubjectID        string        `json:"subject_id" validate:"required,uuid"`
	Difficulty       string        `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Topic            string        `json:"topic" validate:"omitempty,max=120"`
	TimeLimitMinutes int           `json:"time_limit_minutes" validate:"omitempty,min=1,max=300"`
	Questions        []NewQuestion `json:"questions" validate:"required,min=1,max=100,dive"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.SubjectID = core.CleanString(nq.SubjectID, true /* lower */)
	nq.Difficulty = core.CleanString(nq.Difficulty, true /* lower */)
	nq.Topic = core.CleanString(nq.Topic)
	for i := range nq.Questions {
		q := &nq.Questions[i]
		q.QuestionText = core.CleanString(q.QuestionText)
		q.OptionA = core.CleanString(q.OptionA)
		q.OptionB = core.CleanString(q.OptionB)
		q.OptionC = core.CleanString(q.OptionC)
		q.OptionD = core.CleanString(q.OptionD)
		q.CorrectOption = core.CleanString(q.CorrectOption, true /* lower */)
		q.Explanation = core.CleanString(q.Explanation)
	}
	return validate.Struct(nq)
}

// VideoFilter applies AND operation on available fields.
// An empty SubjectIDs matches every subject.
type VideoFilter struct {
	SubjectIDs []string
	TeacherID  string
	Orderings  []core.DBOrdering
}

type QuizFilter struct {
	SubjectID string `query:"subject_id"`
	CreatedBy string `query:"created_by"`
}

// VideoOrderingFields maps the public ordering names of videos to their columns.
var VideoOrderingFields = map[string]string{
	"created_at":       "v.created_at",
	"title":            "v.title",
	"duration_minutes": "v.duration_minutes",
}
