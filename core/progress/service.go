package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

const (
	EventVideoCompleted = "progress.video_completed"
	EventQuizCompleted  = "progress.quiz_completed"
)

var ErrEmptyQuiz = errors.New("this quiz has no questions")

type (
	Repository interface {
		// UpsertVideoProgress inserts or updates the (student, video) row.
		UpsertVideoProgress(ctx context.Context, vp VideoProgress) (VideoProgress, error)
		CompletedVideoIDs(ctx context.Context, studentID string) ([]string, error)
		CountCompletedVideos(ctx context.Context, studentID string) (int, error)
		CreateQuizResult(ctx context.Context, res QuizResult) (QuizResult, error)
		// QueryResults lists the student's results newest first.
		QueryResults(ctx context.Context, studentID string) ([]ResultDetail, error)
	}

	// StudyRecorder keeps the student's study streak.
	StudyRecorder interface {
		RecordStudyActivity(ctx context.Context, studentID string, at time.Time) (user.StudentProfile, error)
	}

	// CacheInvalidator drops derived data cached for a student.
	CacheInvalidator interface {
		Invalidate(ctx context.Context, studentID string) error
	}

	ServiceInterface interface {
		CompleteVideo(ctx context.Context, studentID, videoID string, cv CompleteVideo) (VideoProgress, error)
		CompletedVideoIDs(ctx context.Context, studentID string) ([]string, error)
		CountCompletedVideos(ctx context.Context, studentID string) (int, error)
		SubmitQuiz(ctx context.Context, studentID, quizID string, qs QuizSubmission) (QuizResult, error)
		Results(ctx context.Context, studentID string) ([]ResultDetail, error)
	}

	service struct {
		repo       Repository
		catalogSvc catalog.ServiceInterface
		study      StudyRecorder
		cache      CacheInvalidator
		events     core.EventPublisher
		logger     core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the progress service. cache and events may be nil.
func NewService(
	repo Repository,
	catalogSvc catalog.ServiceInterface,
	study StudyRecorder,
	cache CacheInvalidator,
	events core.EventPublisher,
	logger core.Logger,
) ServiceInterface {
	return &service{
		repo:       repo,
		catalogSvc: catalogSvc,
		study:      study,
		cache:      cache,
		events:     events,
		logger:     logger,
	}
}

// CompleteVideo marks the video completed for the student, replacing any previous feedback.
func (svc *service) CompleteVideo(ctx context.Context, studentID, videoID string, cv CompleteVideo) (VideoProgress, error) {
	if _, err := svc.catalogSvc.GetVideo(ctx, videoID); err != nil {
		return VideoProgress{}, err
	}

	now := time.Now().UTC()
	vp, err := svc.repo.UpsertVideoProgress(ctx, VideoProgress{
		StudentID:          studentID,
		VideoID:            videoID,
		Completed:          true,
		DifficultyFeedback: null.NewString(cv.DifficultyFeedback, cv.DifficultyFeedback != ""),
		WatchedAt:          now,
	})
	if err != nil {
		return VideoProgress{}, errors.Wrap(err, "upserting video progress")
	}

	svc.afterActivity(ctx, studentID, now)
	core.PublishEvent(ctx, svc.events, svc.logger, EventVideoCompleted, map[string]string{
		"student_id":          studentID,
		"video_id":            videoID,
		"difficulty_feedback": cv.DifficultyFeedback,
	})
	return vp, nil
}

func (svc *service) CompletedVideoIDs(ctx context.Context, studentID string) ([]string, error) {
	return svc.repo.CompletedVideoIDs(ctx, studentID)
}

func (svc *service) CountCompletedVideos(ctx context.Context, studentID string) (int, error) {
	return svc.repo.CountCompletedVideos(ctx, studentID)
}

// SubmitQuiz grades the answers against the quiz and stores the result.
func (svc *service) SubmitQuiz(ctx context.Context, studentID, quizID string, qs QuizSubmission) (QuizResult, error) {
	quiz, err := svc.catalogSvc.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizResult{}, err
	}
	if len(quiz.Questions) == 0 {
		return QuizResult{}, core.NewValidationError(ErrEmptyQuiz)
	}

	score, err := Grade(quiz.Questions, qs.Answers)
	if err != nil {
		return QuizResult{}, err
	}

	res := QuizResult{
		QuizID:         quiz.ID,
		StudentID:      studentID,
		Score:          score,
		TotalQuestions: len(quiz.Questions),
		Answers:        qs.Answers,
		CompletedAt:    time.Now().UTC(),
	}
	if res.Answers == nil {
		res.Answers = map[string]string{}
	}
	if qs.TimeTakenMinutes != nil {
		res.TimeTakenMinutes = null.IntFrom(*qs.TimeTakenMinutes)
	}

	res, err = svc.repo.CreateQuizResult(ctx, res)
	if err != nil {
		return QuizResult{}, errors.Wrap(err, "creating quiz result")
	}

	svc.afterActivity(ctx, studentID, res.CompletedAt)
	core.PublishEvent(ctx, svc.events, svc.logger, EventQuizCompleted, map[string]interface{}{
		"student_id":      studentID,
		"quiz_id":         quiz.ID,
		"score":           res.Score,
		"total_questions": res.TotalQuestions,
	})
	return res, nil
}

func (svc *service) Results(ctx context.Context, studentID string) ([]ResultDetail, error) {
	return svc.repo.QueryResults(ctx, studentID)
}

// afterActivity updates the streak & drops cached analytics. Failures are logged only:
// the activity itself is already persisted.
func (svc *service) afterActivity(ctx context.Context, studentID string, at time.Time) {
	if svc.study != nil {
		if _, err := svc.study.RecordStudyActivity(ctx, studentID, at); err != nil {
			svc.logger.Warn(fmt.Sprintf("recording study activity: %v", err), err)
		}
	}
	if svc.cache != nil {
		if err := svc.cache.Invalidate(ctx, studentID); err != nil {
			svc.logger.Warn(fmt.Sprintf("invalidating analytics cache: %v", err), err)
		}
	}
}

// Grade counts the answers matching the correct option of their question.
// Unanswered questions score 0. Answers to questions outside the quiz are rejected.
func Grade(questions []catalog.Question, answers map[string]string) (int, error) {
	correct := make(map[string]string, len(questions))
	for _, q := range questions {
		correct[q.ID] = q.CorrectOption
	}

	var score int
	for qid, opt := range answers {
		want, ok := correct[qid]
		if !ok {
			msg := fmt.Sprintf("unknown question %q", qid)
			return 0, core.NewValidationError(errors.New(msg), core.FieldError{Field: "answers", Error: msg})
		}
		if opt != "" && opt == want {
			score++
		}
	}
	return score, nil
}
