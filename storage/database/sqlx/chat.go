package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/chat"
)

type chatRepository struct {
	db core.DB
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db core.DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateMessages(ctx context.Context, msgs ...chat.Message) ([]chat.Message, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for i := range msgs {
			msgs[i].ID = newID()
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO chatbot_messages (id, student_id, role, content, created_at)
				VALUES (:id, :student_id, :role, :content, :created_at)`,
				msgs[i],
			)
			if err != nil {
				return errors.Wrap(err, "inserting message")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, studentID string, limit int) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	if !isUUID(studentID) {
		return msgs, nil
	}
	err := repo.db.SelectContext(ctx, &msgs, `
		SELECT * FROM (
			SELECT id, student_id, role, content, created_at FROM chatbot_messages
			WHERE student_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) m
		ORDER BY created_at, id`,
		studentID, limit,
	)
	return msgs, errors.Wrap(err, "selecting messages")
}
