package inmemdb

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core/analytics"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) TeacherCounts(_ context.Context, teacherID string) (analytics.TeacherCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts analytics.TeacherCounts
	if teacherID == "" {
		return counts, nil
	}
	for _, sels := range repo.db.teacherSel {
		for _, s := range sels {
			if s.TeacherID == teacherID {
				counts.Students++
				break
			}
		}
	}
	for _, v := range repo.db.videos {
		if v.TeacherID.String == teacherID {
			counts.Videos++
		}
	}
	for _, q := range repo.db.quizzes {
		if q.CreatedBy.String == teacherID {
			counts.Quizzes++
		}
	}

	var ratios float64
	for _, r := range repo.db.results {
		q, ok := repo.db.quizzes[r.QuizID]
		if !ok || q.CreatedBy.String != teacherID || r.TotalQuestions <= 0 {
			continue
		}
		counts.Results++
		ratios += analytics.Ratio(r.Score, r.TotalQuestions)
	}
	if counts.Results > 0 {
		counts.AverageRatio = null.Float64From(ratios / float64(counts.Results))
	}
	return counts, nil
}
