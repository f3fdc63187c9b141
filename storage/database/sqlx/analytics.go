package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/analytics"
)

type analyticsRepository struct {
	db core.DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db core.DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) TeacherCounts(ctx context.Context, teacherID string) (analytics.TeacherCounts, error) {
	var counts analytics.TeacherCounts
	if !isUUID(teacherID) {
		return counts, nil
	}
	err := repo.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT count(DISTINCT student_id) FROM teacher_selections WHERE teacher_id = $1) AS students,
			(SELECT count(*) FROM videos WHERE teacher_id = $1) AS videos,
			(SELECT count(*) FROM quizzes WHERE created_by = $1) AS quizzes,
			count(r.id) AS results,
			avg(r.score::float8 / r.total_questions * 100) AS average_ratio
		FROM quiz_results r
		JOIN quizzes q ON q.id = r.quiz_id
		WHERE q.created_by = $1`,
		teacherID,
	)
	return counts, errors.Wrap(err, "counting teacher stats")
}
