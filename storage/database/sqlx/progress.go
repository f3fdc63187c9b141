package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/progress"
)

type resultRow struct {
	ID               string         `db:"id"`
	QuizID           string         `db:"quiz_id"`
	StudentID        string         `db:"student_id"`
	Score            int            `db:"score"`
	TotalQuestions   int            `db:"total_questions"`
	Answers          types.JSONText `db:"answers"`
	TimeTakenMinutes null.Int       `db:"time_taken_minutes"`
	CompletedAt      time.Time      `db:"completed_at"`
	QuizTitle        string         `db:"quiz_title"`
	SubjectID        null.String    `db:"subject_id"`
	SubjectName      null.String    `db:"subject_name"`
	SubjectIcon      null.String    `db:"subject_icon"`
}

func (r resultRow) detail() (progress.ResultDetail, error) {
	answers := make(map[string]string)
	if len(r.Answers) > 0 {
		if err := r.Answers.Unmarshal(&answers); err != nil {
			return progress.ResultDetail{}, errors.Wrap(err, "decoding answers")
		}
	}
	return progress.ResultDetail{
		QuizResult: progress.QuizResult{
			ID:               r.ID,
			QuizID:           r.QuizID,
			StudentID:        r.StudentID,
			Score:            r.Score,
			TotalQuestions:   r.TotalQuestions,
			Answers:          answers,
			TimeTakenMinutes: r.TimeTakenMinutes,
			CompletedAt:      r.CompletedAt,
		},
		QuizTitle:   r.QuizTitle,
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		SubjectIcon: r.SubjectIcon,
	}, nil
}

type progressRepository struct {
	db core.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db core.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) UpsertVideoProgress(ctx context.Context, vp progress.VideoProgress) (progress.VideoProgress, error) {
	var saved progress.VideoProgress
	err := repo.db.GetContext(ctx, &saved, `
		INSERT INTO video_progress (id, student_id, video_id, completed, difficulty_feedback, watched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, video_id) DO UPDATE
		SET completed = EXCLUDED.completed, difficulty_feedback = EXCLUDED.difficulty_feedback, watched_at = EXCLUDED.watched_at
		RETURNING id, student_id, video_id, completed, difficulty_feedback, watched_at`,
		newID(), vp.StudentID, vp.VideoID, vp.Completed, vp.DifficultyFeedback, vp.WatchedAt,
	)
	return saved, errors.Wrap(err, "upserting video progress")
}

func (repo *progressRepository) CompletedVideoIDs(ctx context.Context, studentID string) ([]string, error) {
	ids := make([]string, 0)
	if !isUUID(studentID) {
		return ids, nil
	}
	err := repo.db.SelectContext(ctx, &ids,
		"SELECT video_id FROM video_progress WHERE student_id = $1 AND completed ORDER BY watched_at DESC", studentID,
	)
	return ids, errors.Wrap(err, "selecting completed videos")
}

func (repo *progressRepository) CountCompletedVideos(ctx context.Context, studentID string) (int, error) {
	if !isUUID(studentID) {
		return 0, nil
	}
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT count(*) FROM video_progress WHERE student_id = $1 AND completed", studentID)
	return n, errors.Wrap(err, "counting completed videos")
}

func (repo *progressRepository) CreateQuizResult(ctx context.Context, res progress.QuizResult) (progress.QuizResult, error) {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return progress.QuizResult{}, errors.Wrap(err, "encoding answers")
	}
	res.ID = newID()
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO quiz_results (id, quiz_id, student_id, score, total_questions, answers, time_taken_minutes, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		res.ID, res.QuizID, res.StudentID, res.Score, res.TotalQuestions, types.JSONText(answers), res.TimeTakenMinutes, res.CompletedAt,
	)
	if err != nil {
		return progress.QuizResult{}, errors.Wrap(err, "inserting quiz result")
	}
	return res, nil
}

func (repo *progressRepository) QueryResults(ctx context.Context, studentID string) ([]progress.ResultDetail, error) {
	results := make([]progress.ResultDetail, 0)
	if !isUUID(studentID) {
		return results, nil
	}

	rows := make([]resultRow, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT r.id, r.quiz_id, r.student_id, r.score, r.total_questions, r.answers, r.time_taken_minutes, r.completed_at,
			q.title AS quiz_title, q.subject_id, s.name AS subject_name, s.icon AS subject_icon
		FROM quiz_results r
		JOIN quizzes q ON q.id = r.quiz_id
		LEFT JOIN subjects s ON s.id = q.subject_id
		WHERE r.student_id = $1
		ORDER BY r.completed_at DESC, r.id`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting quiz results")
	}
	for _, row := range rows {
		d, err := row.detail()
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, nil
}
