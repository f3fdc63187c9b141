package inmemdb

import (
	"context"
	"time"

	"github.com/edvora/edvora/core/selection"
)

type selectionRepository struct {
	db *DB
}

var _ selection.Repository = (*selectionRepository)(nil)

func NewSelectionRepository(db *DB) selection.Repository {
	return &selectionRepository{db: db}
}

func (repo *selectionRepository) QuerySubjectSelections(_ context.Context, studentID string) ([]selection.SubjectSelection, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return append(make([]selection.SubjectSelection, 0), repo.db.subjectSel[studentID]...), nil
}

func (repo *selectionRepository) ReplaceSubjectSelections(_ context.Context, studentID string, subjectIDs []string) ([]selection.SubjectSelection, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	sels := make([]selection.SubjectSelection, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		sels = append(sels, selection.SubjectSelection{SubjectID: id, SelectedAt: now})
	}
	repo.db.subjectSel[studentID] = sels
	return append(make([]selection.SubjectSelection, 0, len(sels)), sels...), nil
}

func (repo *selectionRepository) QueryTeacherSelections(_ context.Context, studentID string) ([]selection.TeacherSelection, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return append(make([]selection.TeacherSelection, 0), repo.db.teacherSel[studentID]...), nil
}

func (repo *selectionRepository) ReplaceTeacherSelections(_ context.Context, studentID string, selections []selection.TeacherSelection) ([]selection.TeacherSelection, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	sels := make([]selection.TeacherSelection, 0, len(selections))
	for _, s := range selections {
		s.SelectedAt = now
		sels = append(sels, s)
	}
	repo.db.teacherSel[studentID] = sels
	return append(make([]selection.TeacherSelection, 0, len(sels)), sels...), nil
}
