package progress

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
)

type VideoProgress struct {
	ID                 string      `json:"id" db:"id"`
	StudentID          string      `json:"student_id" db:"student_id"`
	VideoID            string      `json:"video_id" db:"video_id"`
	Completed          bool        `json:"completed" db:"completed"`
	DifficultyFeedback null.String `json:"difficulty_feedback" db:"difficulty_feedback"`
	WatchedAt          time.Time   `json:"watched_at" db:"watched_at"`
}

// QuizResult is one graded attempt. 0 <= Score <= TotalQuestions and TotalQuestions > 0.
type QuizResult struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quiz_id"`
	StudentID        string            `json:"student_id"`
	Score            int               `json:"score"`
	TotalQuestions   int               `json:"total_questions"`
	Answers          map[string]string `json:"answers"` // {question id: chosen option}
	TimeTakenMinutes null.Int          `json:"time_taken_minutes"`
	CompletedAt      time.Time         `json:"completed_at"`
}

// ResultDetail is a QuizResult with the quiz it belongs to.
type ResultDetail struct {
	QuizResult
	QuizTitle   string      `json:"quiz_title"`
	SubjectID   null.String `json:"subject_id"`
	SubjectName null.String `json:"subject_name"`
	SubjectIcon null.String `json:"subject_icon"`
}

type CompleteVideo struct {
	DifficultyFeedback string `json:"difficulty_feedback" validate:"omitempty,oneof=easy medium hard"`
}

func (cv *CompleteVideo) Validate(validate *validator.Validate) error {
	cv.DifficultyFeedback = core.CleanString(cv.DifficultyFeedback, true /* lower */)
	return validate.Struct(cv)
}

type QuizSubmission struct {
	Answers          map[string]string `json:"answers" validate:"required,dive,keys,required,endkeys,omitempty,oneof=a b c d"`
	TimeTakenMinutes *int              `json:"time_taken_minutes" validate:"omitempty,min=0,max=600"`
}

func (qs *QuizSubmission) Validate(validate *validator.Validate) error {
	if qs.Answers != nil {
		answers := make(map[string]string, len(qs.Answers))
		for qid, opt := range qs.Answers {
			answers[core.CleanString(qid, true /* lower */)] = core.CleanString(opt, true /* lower */)
		}
		qs.Answers = answers
	}
	return validate.Struct(qs)
}
