// Package selection implements the student's three step setup:
// pick subjects, pick a preferred teacher per subject, then get videos ranked by those picks.
// Every save replaces the student's previous picks as a whole.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

type (
	SubjectSelection struct {
		SubjectID  string    `json:"subject_id" db:"subject_id"`
		SelectedAt time.Time `json:"selected_at" db:"selected_at"`
	}

	TeacherSelection struct {
		SubjectID  string    `json:"subject_id" db:"subject_id"`
		TeacherID  string    `json:"teacher_id" db:"teacher_id"`
		SelectedAt time.Time `json:"selected_at" db:"selected_at"`
	}

	RecommendedVideo struct {
		catalog.VideoDetail
		PreferredTeacher bool `json:"preferred_teacher"`
		Completed        bool `json:"completed"`
	}

	Repository interface {
		QuerySubjectSelections(ctx context.Context, studentID string) ([]SubjectSelection, error)
		// ReplaceSubjectSelections deletes then inserts in a single transaction:
		// on failure the previous selections are left untouched.
		ReplaceSubjectSelections(ctx context.Context, studentID string, subjectIDs []string) ([]SubjectSelection, error)
		QueryTeacherSelections(ctx context.Context, studentID string) ([]TeacherSelection, error)
		// ReplaceTeacherSelections has the same guarantees as ReplaceSubjectSelections.
		ReplaceTeacherSelections(ctx context.Context, studentID string, selections []TeacherSelection) ([]TeacherSelection, error)
	}

	// TeacherLookup finds users to check that picked teachers are teachers.
	TeacherLookup interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// CompletionLookup lists the videos a student completed.
	CompletionLookup interface {
		CompletedVideoIDs(ctx context.Context, studentID string) ([]string, error)
	}

	ServiceInterface interface {
		SubjectIDs(ctx context.Context, studentID string) ([]string, error)
		SelectedSubjects(ctx context.Context, studentID string) ([]catalog.Subject, error)
		SaveSubjects(ctx context.Context, studentID string, subjectIDs []string) ([]string, error)
		TeacherPicks(ctx context.Context, studentID string) (map[string]string, error)
		SaveTeachers(ctx context.Context, studentID string, picks map[string]string) (map[string]string, error)
		RecommendedVideos(ctx context.Context, studentID string) ([]RecommendedVideo, error)
	}

	service struct {
		repo       Repository
		catalogSvc catalog.ServiceInterface
		teachers   TeacherLookup
		completion CompletionLookup
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	catalogSvc catalog.ServiceInterface,
	teachers TeacherLookup,
	completion CompletionLookup,
) ServiceInterface {
	return &service{
		repo:       repo,
		catalogSvc: catalogSvc,
		teachers:   teachers,
		completion: completion,
	}
}

func (svc *service) SubjectIDs(ctx context.Context, studentID string) ([]string, error) {
	sels, err := svc.repo.QuerySubjectSelections(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject selections")
	}
	ids := make([]string, 0, len(sels))
	for _, s := range sels {
		ids = append(ids, s.SubjectID)
	}
	return ids, nil
}

func (svc *service) SelectedSubjects(ctx context.Context, studentID string) ([]catalog.Subject, error) {
	ids, err := svc.SubjectIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []catalog.Subject{}, nil
	}
	return svc.catalogSvc.ListSubjects(ctx, ids...)
}

// SaveSubjects replaces the student's subjects with subjectIDs (lower-cased, de-duplicated).
// Saving the same set twice persists the same set.
func (svc *service) SaveSubjects(ctx context.Context, studentID string, subjectIDs []string) ([]string, error) {
	lowered := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		lowered[i] = strings.ToLower(id)
	}
	ids := core.UniqueStrings(lowered)
	if err := svc.catalogSvc.CheckSubjects(ctx, "subject_ids", ids...); err != nil {
		return nil, err
	}
	sels, err := svc.repo.ReplaceSubjectSelections(ctx, studentID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "replacing subject selections")
	}
	saved := make([]string, 0, len(sels))
	for _, s := range sels {
		saved = append(saved, s.SubjectID)
	}
	return saved, nil
}

func (svc *service) TeacherPicks(ctx context.Context, studentID string) (map[string]string, error) {
	sels, err := svc.repo.QueryTeacherSelections(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher selections")
	}
	return picksFromSelections(sels), nil
}

// SaveTeachers replaces the student's teacher picks. picks maps a subject id to a teacher id;
// an empty teacher id clears the pick for that subject.
// Two keys naming the same subject once cleaned are rejected.
func (svc *service) SaveTeachers(ctx context.Context, studentID string, picks map[string]string) (map[string]string, error) {
	sels := make([]TeacherSelection, 0, len(picks))
	subjectIDs := make([]string, 0, len(picks))
	teacherIDs := make([]string, 0, len(picks))
	seen := make(map[string]bool, len(picks))
	for subjectID, teacherID := range picks {
		subjectID, teacherID = core.CleanString(subjectID, true /* lower */), core.CleanString(teacherID, true /* lower */)
		if subjectID == "" || teacherID == "" {
			continue
		}
		if seen[subjectID] {
			msg := fmt.Sprintf("subject %q is picked more than once", subjectID)
			return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: "teachers", Error: msg})
		}
		seen[subjectID] = true
		sels = append(sels, TeacherSelection{SubjectID: subjectID, TeacherID: teacherID})
		subjectIDs = append(subjectIDs, subjectID)
		teacherIDs = append(teacherIDs, teacherID)
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i].SubjectID < sels[j].SubjectID })

	if err := svc.catalogSvc.CheckSubjects(ctx, "teachers", subjectIDs...); err != nil {
		return nil, err
	}
	if err := svc.checkTeachers(ctx, teacherIDs); err != nil {
		return nil, err
	}

	saved, err := svc.repo.ReplaceTeacherSelections(ctx, studentID, sels)
	if err != nil {
		return nil, errors.Wrap(err, "replacing teacher selections")
	}
	return picksFromSelections(saved), nil
}

func (svc *service) checkTeachers(ctx context.Context, teacherIDs []string) error {
	for _, id := range core.UniqueStrings(teacherIDs) {
		usr, err := svc.teachers.GetByID(ctx, id)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "getting teacher")
		}
		if err != nil || !usr.IsTeacher() || !usr.IsActive {
			msg := fmt.Sprintf("unknown teacher %q", id)
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: "teachers", Error: msg})
		}
	}
	return nil
}

// RecommendedVideos lists the videos of the student's subjects (every video when none is selected),
// videos of preferred teachers first, each flagged when already completed.
func (svc *service) RecommendedVideos(ctx context.Context, studentID string) ([]RecommendedVideo, error) {
	subjectIDs, err := svc.SubjectIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	picks, err := svc.repo.QueryTeacherSelections(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher selections")
	}
	teacherIDs := make([]string, 0, len(picks))
	for _, p := range picks {
		teacherIDs = append(teacherIDs, p.TeacherID)
	}

	videos, err := svc.catalogSvc.ListVideos(ctx, catalog.VideoFilter{SubjectIDs: subjectIDs})
	if err != nil {
		return nil, errors.Wrap(err, "listing videos")
	}
	completedIDs, err := svc.completion.CompletedVideoIDs(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing completed videos")
	}
	completed := make(map[string]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = struct{}{}
	}

	ranked := catalog.RankVideos(videos, teacherIDs)
	out := make([]RecommendedVideo, 0, len(ranked))
	for _, v := range ranked {
		_, done := completed[v.ID]
		out = append(out, RecommendedVideo{
			VideoDetail:      v,
			PreferredTeacher: v.TeacherID.Valid && core.ContainsString(teacherIDs, v.TeacherID.String),
			Completed:        done,
		})
	}
	return out, nil
}

func picksFromSelections(sels []TeacherSelection) map[string]string {
	picks := make(map[string]string, len(sels))
	for _, s := range sels {
		picks[s.SubjectID] = s.TeacherID
	}
	return picks
}
