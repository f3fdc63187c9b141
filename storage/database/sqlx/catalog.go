package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
)

const (
	subjectColumns = "id, name, description, icon, created_at"
	videoSelect    = `
		SELECT v.id, v.title, v.description, v.video_url, v.thumbnail_url, v.subject_id, v.teacher_id, v.difficulty,
			v.duration_minutes, v.topic, v.created_at, v.updated_at,
			s.name AS subject_name, s.icon AS subject_icon, p.full_name AS teacher_name
		FROM videos v
		LEFT JOIN subjects s ON s.id = v.subject_id
		LEFT JOIN profiles p ON p.id = v.teacher_id`
	quizSelect = `
		SELECT q.id, q.title, q.subject_id, q.created_by, q.difficulty, q.topic, q.time_limit_minutes, q.created_at,
			(SELECT count(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id) AS question_count
		FROM quizzes q`
	questionColumns = `id, quiz_id, question_text, option_a, option_b, option_c, option_d, correct_option, explanation,
		question_order`
)

type catalogRepository struct {
	db core.DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db core.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, subj catalog.Subject) (catalog.Subject, error) {
	subj.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO subjects (id, name, description, icon, created_at)
		VALUES (:id, :name, :description, :icon, :created_at)`,
		subj,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Subject{}, core.NewValidationError(catalog.ErrSubjectExists, core.FieldError{Field: "name", Error: catalog.ErrSubjectExists.Error()})
		}
		return catalog.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return subj, nil
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id string) (catalog.Subject, error) {
	if !isUUID(id) {
		return catalog.Subject{}, catalog.ErrSubjectNotFound
	}
	var subj catalog.Subject
	if err := repo.db.GetContext(ctx, &subj, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		return catalog.Subject{}, notFound(err, catalog.ErrSubjectNotFound)
	}
	return subj, nil
}

func (repo *catalogRepository) QuerySubjects(ctx context.Context, ids ...string) ([]catalog.Subject, error) {
	subjects := make([]catalog.Subject, 0)
	q := "SELECT " + subjectColumns + " FROM subjects"
	args := make([]interface{}, 0, 1)
	if len(ids) > 0 {
		valid := uuids(ids)
		if len(valid) == 0 {
			return subjects, nil
		}
		q += " WHERE id = ANY($1::uuid[])"
		args = append(args, pq.Array(valid))
	}
	q += " ORDER BY name"

	if err := repo.db.SelectContext(ctx, &subjects, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	return subjects, nil
}

func (repo *catalogRepository) SubjectNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM subjects WHERE lower(name) = lower($1))", name)
	return exists, err
}

func (repo *catalogRepository) CreateVideo(ctx context.Context, v catalog.Video) (catalog.Video, error) {
	v.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO videos (id, title, description, video_url, thumbnail_url, subject_id, teacher_id, difficulty,
			duration_minutes, topic, created_at, updated_at)
		VALUES (:id, :title, :description, :video_url, :thumbnail_url, :subject_id, :teacher_id, :difficulty,
			:duration_minutes, :topic, :created_at, :updated_at)`,
		v,
	)
	if err != nil {
		return catalog.Video{}, errors.Wrap(err, "inserting video")
	}
	return v, nil
}

func (repo *catalogRepository) GetVideo(ctx context.Context, id string) (catalog.VideoDetail, error) {
	if !isUUID(id) {
		return catalog.VideoDetail{}, catalog.ErrVideoNotFound
	}
	var v catalog.VideoDetail
	if err := repo.db.GetContext(ctx, &v, videoSelect+" WHERE v.id = $1", id); err != nil {
		return catalog.VideoDetail{}, notFound(err, catalog.ErrVideoNotFound)
	}
	return v, nil
}

func (repo *catalogRepository) QueryVideos(ctx context.Context, filter catalog.VideoFilter) ([]catalog.VideoDetail, error) {
	videos := make([]catalog.VideoDetail, 0)
	conds := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	placeholder := func() string { return "$" + strconv.Itoa(len(args)) }

	if len(filter.SubjectIDs) > 0 {
		valid := uuids(filter.SubjectIDs)
		if len(valid) == 0 {
			return videos, nil
		}
		args = append(args, pq.Array(valid))
		conds = append(conds, "v.subject_id = ANY("+placeholder()+"::uuid[])")
	}
	if filter.TeacherID != "" {
		if !isUUID(filter.TeacherID) {
			return videos, nil
		}
		args = append(args, filter.TeacherID)
		conds = append(conds, "v.teacher_id = "+placeholder())
	}

	q := videoSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += core.OrderByClause(filter.Orderings, catalog.VideoOrderingFields, "v.created_at DESC") + ", v.id"

	if err := repo.db.SelectContext(ctx, &videos, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting videos")
	}
	return videos, nil
}

func (repo *catalogRepository) UpdateVideoThumbnail(ctx context.Context, id, url string) (catalog.Video, error) {
	if !isUUID(id) {
		return catalog.Video{}, catalog.ErrVideoNotFound
	}
	var v catalog.Video
	err := repo.db.GetContext(ctx, &v, `
		UPDATE videos SET thumbnail_url = $2, updated_at = $3 WHERE id = $1
		RETURNING id, title, description, video_url, thumbnail_url, subject_id, teacher_id, difficulty,
			duration_minutes, topic, created_at, updated_at`,
		id, url, time.Now().UTC(),
	)
	if err != nil {
		return catalog.Video{}, notFound(err, catalog.ErrVideoNotFound)
	}
	return v, nil
}

func (repo *catalogRepository) CreateQuiz(ctx context.Context, qd catalog.QuizDetail) (catalog.QuizDetail, error) {
	qd.ID = newID()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO quizzes (id, title, subject_id, created_by, difficulty, topic, time_limit_minutes, created_at)
			VALUES (:id, :title, :subject_id, :created_by, :difficulty, :topic, :time_limit_minutes, :created_at)`,
			qd.Quiz,
		)
		if err != nil {
			return errors.Wrap(err, "inserting quiz")
		}

		for i := range qd.Questions {
			q := &qd.Questions[i]
			q.ID = newID()
			q.QuizID = qd.ID
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO quiz_questions (id, quiz_id, question_text, option_a, option_b, option_c, option_d,
					correct_option, explanation, question_order)
				VALUES (:id, :quiz_id, :question_text, :option_a, :option_b, :option_c, :option_d,
					:correct_option, :explanation, :question_order)`,
				q,
			)
			if err != nil {
				return errors.Wrap(err, "inserting question")
			}
		}
		return nil
	})
	if err != nil {
		return catalog.QuizDetail{}, err
	}
	qd.QuestionCount = len(qd.Questions)
	return qd, nil
}

func (repo *catalogRepository) GetQuiz(ctx context.Context, id string) (catalog.QuizDetail, error) {
	if !isUUID(id) {
		return catalog.QuizDetail{}, catalog.ErrQuizNotFound
	}
	var qd catalog.QuizDetail
	if err := repo.db.GetContext(ctx, &qd.Quiz, quizSelect+" WHERE q.id = $1", id); err != nil {
		return catalog.QuizDetail{}, notFound(err, catalog.ErrQuizNotFound)
	}
	qd.Questions = make([]catalog.Question, 0, qd.QuestionCount)
	err := repo.db.SelectContext(ctx, &qd.Questions,
		"SELECT "+questionColumns+" FROM quiz_questions WHERE quiz_id = $1 ORDER BY question_order, id", id,
	)
	if err != nil {
		return catalog.QuizDetail{}, errors.Wrap(err, "selecting questions")
	}
	return qd, nil
}

func (repo *catalogRepository) QueryQuizzes(ctx context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	quizzes := make([]catalog.Quiz, 0)
	conds := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	for col, val := range map[string]string{"q.subject_id": filter.SubjectID, "q.created_by": filter.CreatedBy} {
		if val == "" {
			continue
		}
		if !isUUID(val) {
			return quizzes, nil
		}
		args = append(args, val)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}

	q := quizSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY q.created_at DESC, q.id"

	if err := repo.db.SelectContext(ctx, &quizzes, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	return quizzes, nil
}
