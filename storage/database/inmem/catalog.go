package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) nameTaken(name string) bool {
	for _, s := range repo.db.subjects {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) CreateSubject(_ context.Context, subj catalog.Subject) (catalog.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.nameTaken(subj.Name) {
		return catalog.Subject{}, core.NewValidationError(catalog.ErrSubjectExists, core.FieldError{Field: "name", Error: catalog.ErrSubjectExists.Error()})
	}
	subj.ID = newID()
	repo.db.subjects[subj.ID] = &subj
	return subj, nil
}

func (repo *catalogRepository) GetSubject(_ context.Context, id string) (catalog.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return *s, nil
	}
	return catalog.Subject{}, catalog.ErrSubjectNotFound
}

func (repo *catalogRepository) QuerySubjects(_ context.Context, ids ...string) ([]catalog.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]catalog.Subject, 0)
	for _, s := range repo.db.subjects {
		if len(ids) > 0 && !core.ContainsString(ids, s.ID) {
			continue
		}
		subjects = append(subjects, *s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *catalogRepository) SubjectNameExists(_ context.Context, name string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.nameTaken(name), nil
}

func (repo *catalogRepository) CreateVideo(_ context.Context, v catalog.Video) (catalog.Video, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	v.ID = newID()
	repo.db.videos[v.ID] = &v
	return v, nil
}

// detail joins the video with its subject and teacher. Callers hold the lock.
func (repo *catalogRepository) detail(v catalog.Video) catalog.VideoDetail {
	d := catalog.VideoDetail{Video: v}
	if s, ok := repo.db.subjects[v.SubjectID.String]; ok && v.SubjectID.Valid {
		d.SubjectName = null.StringFrom(s.Name)
		d.SubjectIcon = s.Icon
	}
	if u, ok := repo.db.users[v.TeacherID.String]; ok && v.TeacherID.Valid {
		d.TeacherName = null.StringFrom(u.FullName)
	}
	return d
}

func (repo *catalogRepository) GetVideo(_ context.Context, id string) (catalog.VideoDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if v, ok := repo.db.videos[id]; ok {
		return repo.detail(*v), nil
	}
	return catalog.VideoDetail{}, catalog.ErrVideoNotFound
}

func (repo *catalogRepository) QueryVideos(_ context.Context, filter catalog.VideoFilter) ([]catalog.VideoDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	videos := make([]catalog.VideoDetail, 0)
	for _, v := range repo.db.videos {
		if len(filter.SubjectIDs) > 0 && !core.ContainsString(filter.SubjectIDs, v.SubjectID.String) {
			continue
		}
		if filter.TeacherID != "" && v.TeacherID.String != filter.TeacherID {
			continue
		}
		videos = append(videos, repo.detail(*v))
	}
	sortVideos(videos, filter.Orderings)
	return videos, nil
}

func sortVideos(videos []catalog.VideoDetail, orderings []core.DBOrdering) {
	orderings = append(orderings, core.DBOrdering{Field: "created_at"})
	sort.SliceStable(videos, func(i, j int) bool {
		a, b := videos[i], videos[j]
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "created_at":
				cmp = compareTimes(a.CreatedAt, b.CreatedAt)
			case "title":
				cmp = strings.Compare(a.Title, b.Title)
			case "duration_minutes":
				cmp = compareInts(a.DurationMinutes.Int, b.DurationMinutes.Int)
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return a.ID < b.ID
	})
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *catalogRepository) UpdateVideoThumbnail(_ context.Context, id, url string) (catalog.Video, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	v, ok := repo.db.videos[id]
	if !ok {
		return catalog.Video{}, catalog.ErrVideoNotFound
	}
	v.ThumbnailURL = null.StringFrom(url)
	v.UpdatedAt = time.Now().UTC()
	return *v, nil
}

func (repo *catalogRepository) CreateQuiz(_ context.Context, qd catalog.QuizDetail) (catalog.QuizDetail, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	qd.ID = newID()
	questions := make([]catalog.Question, len(qd.Questions))
	for i, q := range qd.Questions {
		q.ID = newID()
		q.QuizID = qd.ID
		questions[i] = q
	}
	qd.Questions = questions
	qd.QuestionCount = len(questions)

	quiz := qd.Quiz
	repo.db.quizzes[qd.ID] = &quiz
	repo.db.questions[qd.ID] = append([]catalog.Question(nil), questions...)
	return qd, nil
}

func (repo *catalogRepository) GetQuiz(_ context.Context, id string) (catalog.QuizDetail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	q, ok := repo.db.quizzes[id]
	if !ok {
		return catalog.QuizDetail{}, catalog.ErrQuizNotFound
	}
	questions := append(make([]catalog.Question, 0, len(repo.db.questions[id])), repo.db.questions[id]...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].QuestionOrder < questions[j].QuestionOrder })
	return catalog.QuizDetail{Quiz: *q, Questions: questions}, nil
}

func (repo *catalogRepository) QueryQuizzes(_ context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]catalog.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if filter.SubjectID != "" && q.SubjectID.String != filter.SubjectID {
			continue
		}
		if filter.CreatedBy != "" && q.CreatedBy.String != filter.CreatedBy {
			continue
		}
		quizzes = append(quizzes, *q)
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].ID < quizzes[j].ID
		}
		return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
	})
	return quizzes, nil
}
