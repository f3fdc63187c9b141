package catalog

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
)

const (
	EventVideoPublished = "catalog.video_published"
	EventQuizPublished  = "catalog.quiz_published"

	MaxThumbnailSize = 5 << 20 // 5MB
)

var (
	// errors
	ErrSubjectNotFound = core.NewNotFoundError("subject")
	ErrVideoNotFound   = core.NewNotFoundError("video")
	ErrQuizNotFound    = core.NewNotFoundError("quiz")
	ErrSubjectExists   = errors.New("a subject with this name already exists")
	ErrNotOwner        = errors.New("only the teacher who published this video can change it")
	ErrStorageDisabled = errors.New("thumbnail storage is not configured")

	thumbnailExts = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	}
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// QuerySubjects lists subjects ordered by name. An empty ids matches every subject.
		QuerySubjects(ctx context.Context, ids ...string) ([]Subject, error)
		SubjectNameExists(ctx context.Context, name string) (bool, error)

		CreateVideo(ctx context.Context, v Video) (Video, error)
		GetVideo(ctx context.Context, id string) (VideoDetail, error)
		QueryVideos(ctx context.Context, filter VideoFilter) ([]VideoDetail, error)
		UpdateVideoThumbnail(ctx context.Context, id, url string) (Video, error)

		// CreateQuiz persists the quiz and its questions atomically.
		CreateQuiz(ctx context.Context, qd QuizDetail) (QuizDetail, error)
		GetQuiz(ctx context.Context, id string) (QuizDetail, error)
		QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
	}

	// ThumbnailStore is any object storage able to host video thumbnails.
	ThumbnailStore interface {
		// Upload stores the object and returns its public URL.
		Upload(ctx context.Context, object string, r io.Reader, size int64, contentType string) (string, error)
	}

	ServiceInterface interface {
		AddSubject(ctx context.Context, ns NewSubject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// ListSubjects lists subjects by name. An empty ids lists every subject.
		ListSubjects(ctx context.Context, ids ...string) ([]Subject, error)
		// CheckSubjects returns a validation error on field when one of ids is not a known subject.
		CheckSubjects(ctx context.Context, field string, ids ...string) error

		AddVideo(ctx context.Context, teacherID string, nv NewVideo) (Video, error)
		GetVideo(ctx context.Context, id string) (VideoDetail, error)
		ListVideos(ctx context.Context, filter VideoFilter) ([]VideoDetail, error)
		UploadThumbnail(ctx context.Context, teacherID, videoID string, r io.Reader, size int64, contentType string) (Video, error)

		AddQuiz(ctx context.Context, creatorID string, nq NewQuiz) (QuizDetail, error)
		GetQuiz(ctx context.Context, id string) (QuizDetail, error)
		ListQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
	}

	service struct {
		repo   Repository
		store  ThumbnailStore
		events core.EventPublisher
		logger core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the catalog service. store and events may be nil.
func NewService(repo Repository, store ThumbnailStore, events core.EventPublisher, logger core.Logger) ServiceInterface {
	return &service{
		repo:   repo,
		store:  store,
		events: events,
		logger: logger,
	}
}

func (svc *service) AddSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	exists, err := svc.repo.SubjectNameExists(ctx, ns.Name)
	if err != nil {
		return Subject{}, errors.Wrap(err, "checking subject name")
	}
	if exists {
		return Subject{}, core.NewValidationError(ErrSubjectExists, core.FieldError{Field: "name", Error: ErrSubjectExists.Error()})
	}
	return svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Description: null.NewString(ns.Description, ns.Description != ""),
		Icon:        null.NewString(ns.Icon, ns.Icon != ""),
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) ListSubjects(ctx context.Context, ids ...string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, ids...)
}

func (svc *service) CheckSubjects(ctx context.Context, field string, ids ...string) error {
	ids = core.UniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := svc.repo.QuerySubjects(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[string]struct{}, len(found))
	for _, s := range found {
		known[s.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			msg := fmt.Sprintf("unknown subject %q", id)
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
		}
	}
	return nil
}

func (svc *service) AddVideo(ctx context.Context, teacherID string, nv NewVideo) (Video, error) {
	if err := svc.CheckSubjects(ctx, "subject_id", nv.SubjectID); err != nil {
		return Video{}, err
	}

	now := time.Now().UTC()
	v, err := svc.repo.CreateVideo(ctx, Video{
		Title:           nv.Title,
		Description:     null.NewString(nv.Description, nv.Description != ""),
		VideoURL:        nv.VideoURL,
		SubjectID:       null.StringFrom(nv.SubjectID),
		TeacherID:       null.StringFrom(teacherID),
		Difficulty:      null.NewString(nv.Difficulty, nv.Difficulty != ""),
		DurationMinutes: null.NewInt(nv.DurationMinutes, nv.DurationMinutes > 0),
		Topic:           null.NewString(nv.Topic, nv.Topic != ""),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Video{}, errors.Wrap(err, "creating video")
	}

	core.PublishEvent(ctx, svc.events, svc.logger, EventVideoPublished, map[string]string{
		"video_id":   v.ID,
		"subject_id": nv.SubjectID,
		"teacher_id": teacherID,
	})
	return v, nil
}

func (svc *service) GetVideo(ctx context.Context, id string) (VideoDetail, error) {
	return svc.repo.GetVideo(ctx, id)
}

func (svc *service) ListVideos(ctx context.Context, filter VideoFilter) ([]VideoDetail, error) {
	filter.SubjectIDs = core.UniqueStrings(filter.SubjectIDs)
	return svc.repo.QueryVideos(ctx, filter)
}

func (svc *service) UploadThumbnail(ctx context.Context, teacherID, videoID string, r io.Reader, size int64, contentType string) (Video, error) {
	if svc.store == nil {
		return Video{}, ErrStorageDisabled
	}

	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := thumbnailExts[ct]
	if !ok {
		return Video{}, core.NewFieldValidationError("file", "thumbnail must be a jpeg, png or webp image")
	}
	if size <= 0 || size > MaxThumbnailSize {
		return Video{}, core.NewFieldValidationError("file", fmt.Sprintf("thumbnail must be at most %dMB", MaxThumbnailSize>>20))
	}

	v, err := svc.repo.GetVideo(ctx, videoID)
	if err != nil {
		return Video{}, err
	}
	if v.TeacherID.String != teacherID {
		return Video{}, ErrNotOwner
	}

	object := path.Join("videos", v.ID, "thumbnail"+ext)
	url, err := svc.store.Upload(ctx, object, r, size, ct)
	if err != nil {
		return Video{}, errors.Wrap(err, "uploading thumbnail")
	}
	return svc.repo.UpdateVideoThumbnail(ctx, v.ID, url)
}

func (svc *service) AddQuiz(ctx context.Context, creatorID string, nq NewQuiz) (QuizDetail, error) {
	if err := svc.CheckSubjects(ctx, "subject_id", nq.SubjectID); err != nil {
		return QuizDetail{}, err
	}

	qd := QuizDetail{
		Quiz: Quiz{
			Title:            nq.Title,
			SubjectID:        null.StringFrom(nq.SubjectID),
			CreatedBy:        null.StringFrom(creatorID),
			Difficulty:       null.NewString(nq.Difficulty, nq.Difficulty != ""),
			Topic:            null.NewString(nq.Topic, nq.Topic != ""),
			TimeLimitMinutes: null.NewInt(nq.TimeLimitMinutes, nq.TimeLimitMinutes > 0),
			QuestionCount:    len(nq.Questions),
			CreatedAt:        time.Now().UTC(),
		},
		Questions: make([]Question, 0, len(nq.Questions)),
	}
	for i, q := range nq.Questions {
		qd.Questions = append(qd.Questions, Question{
			QuestionText:  q.QuestionText,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectOption: q.CorrectOption,
			Explanation:   null.NewString(q.Explanation, q.Explanation != ""),
			QuestionOrder: i + 1,
		})
	}

	qd, err := svc.repo.CreateQuiz(ctx, qd)
	if err != nil {
		return QuizDetail{}, errors.Wrap(err, "creating quiz")
	}

	core.PublishEvent(ctx, svc.events, svc.logger, EventQuizPublished, map[string]interface{}{
		"quiz_id":    qd.ID,
		"subject_id": nq.SubjectID,
		"created_by": creatorID,
		"questions":  len(qd.Questions),
	})
	return qd, nil
}

func (svc *service) GetQuiz(ctx context.Context, id string) (QuizDetail, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) ListQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error) {
	filter.SubjectID = core.CleanString(filter.SubjectID, true /* lower */)
	return svc.repo.QueryQuizzes(ctx, filter)
}
