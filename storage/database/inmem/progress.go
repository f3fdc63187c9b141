package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) UpsertVideoProgress(_ context.Context, vp progress.VideoProgress) (progress.VideoProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	watched, ok := repo.db.watched[vp.StudentID]
	if !ok {
		watched = make(map[string]*progress.VideoProgress)
		repo.db.watched[vp.StudentID] = watched
	}
	if prev, ok := watched[vp.VideoID]; ok {
		vp.ID = prev.ID
	} else {
		vp.ID = newID()
	}
	watched[vp.VideoID] = &vp
	return vp, nil
}

func (repo *progressRepository) completed(studentID string) []*progress.VideoProgress {
	out := make([]*progress.VideoProgress, 0)
	for _, vp := range repo.db.watched[studentID] {
		if vp.Completed {
			out = append(out, vp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WatchedAt.After(out[j].WatchedAt) })
	return out
}

func (repo *progressRepository) CompletedVideoIDs(_ context.Context, studentID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make([]string, 0)
	for _, vp := range repo.completed(studentID) {
		ids = append(ids, vp.VideoID)
	}
	return ids, nil
}

func (repo *progressRepository) CountCompletedVideos(_ context.Context, studentID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.completed(studentID)), nil
}

func (repo *progressRepository) CreateQuizResult(_ context.Context, res progress.QuizResult) (progress.QuizResult, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	res.ID = newID()
	stored := res
	stored.Answers = make(map[string]string, len(res.Answers))
	for k, v := range res.Answers {
		stored.Answers[k] = v
	}
	repo.db.results = append(repo.db.results, &stored)
	return res, nil
}

func (repo *progressRepository) QueryResults(_ context.Context, studentID string) ([]progress.ResultDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	results := make([]progress.ResultDetail, 0)
	for _, r := range repo.db.results {
		if r.StudentID != studentID {
			continue
		}
		q, ok := repo.db.quizzes[r.QuizID]
		if !ok {
			continue
		}
		d := progress.ResultDetail{QuizResult: *r, QuizTitle: q.Title, SubjectID: q.SubjectID}
		if s, ok := repo.db.subjects[q.SubjectID.String]; ok && q.SubjectID.Valid {
			d.SubjectName = null.StringFrom(s.Name)
			d.SubjectIcon = s.Icon
		}
		results = append(results, d)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].CompletedAt.After(results[j].CompletedAt) })
	return results, nil
}
