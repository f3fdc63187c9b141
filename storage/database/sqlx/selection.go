package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/selection"
)

type selectionRepository struct {
	db core.DB
}

var _ selection.Repository = (*selectionRepository)(nil)

func NewSelectionRepository(db core.DB) selection.Repository {
	return &selectionRepository{db: db}
}

func (repo *selectionRepository) QuerySubjectSelections(ctx context.Context, studentID string) ([]selection.SubjectSelection, error) {
	sels := make([]selection.SubjectSelection, 0)
	if !isUUID(studentID) {
		return sels, nil
	}
	err := repo.db.SelectContext(ctx, &sels, `
		SELECT subject_id, selected_at FROM subject_selections
		WHERE student_id = $1
		ORDER BY selected_at, id`,
		studentID,
	)
	return sels, errors.Wrap(err, "selecting subject selections")
}

func (repo *selectionRepository) ReplaceSubjectSelections(ctx context.Context, studentID string, subjectIDs []string) ([]selection.SubjectSelection, error) {
	now := time.Now().UTC()
	sels := make([]selection.SubjectSelection, 0, len(subjectIDs))
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM subject_selections WHERE student_id = $1", studentID); err != nil {
			return errors.Wrap(err, "deleting subject selections")
		}
		for i, subjectID := range subjectIDs {
			// keeps the given order when reading back
			at := now.Add(time.Duration(i) * time.Microsecond)
			_, err := tx.ExecContext(ctx,
				"INSERT INTO subject_selections (id, student_id, subject_id, selected_at) VALUES ($1, $2, $3, $4)",
				newID(), studentID, subjectID, at,
			)
			if err != nil {
				return errors.Wrap(err, "inserting subject selection")
			}
			sels = append(sels, selection.SubjectSelection{SubjectID: subjectID, SelectedAt: at})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sels, nil
}

func (repo *selectionRepository) QueryTeacherSelections(ctx context.Context, studentID string) ([]selection.TeacherSelection, error) {
	sels := make([]selection.TeacherSelection, 0)
	if !isUUID(studentID) {
		return sels, nil
	}
	err := repo.db.SelectContext(ctx, &sels, `
		SELECT subject_id, teacher_id, selected_at FROM teacher_selections
		WHERE student_id = $1
		ORDER BY subject_id`,
		studentID,
	)
	return sels, errors.Wrap(err, "selecting teacher selections")
}

func (repo *selectionRepository) ReplaceTeacherSelections(ctx context.Context, studentID string, selections []selection.TeacherSelection) ([]selection.TeacherSelection, error) {
	now := time.Now().UTC()
	saved := make([]selection.TeacherSelection, 0, len(selections))
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM teacher_selections WHERE student_id = $1", studentID); err != nil {
			return errors.Wrap(err, "deleting teacher selections")
		}
		for _, sel := range selections {
			sel.SelectedAt = now
			_, err := tx.ExecContext(ctx, `
				INSERT INTO teacher_selections (id, student_id, subject_id, teacher_id, selected_at)
				VALUES ($1, $2, $3, $4, $5)`,
				newID(), studentID, sel.SubjectID, sel.TeacherID, sel.SelectedAt,
			)
			if err != nil {
				return errors.Wrap(err, "inserting teacher selection")
			}
			saved = append(saved, sel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
