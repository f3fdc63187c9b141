package inmemdb

import (
	"context"

	"github.com/edvora/edvora/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateMessages(_ context.Context, msgs ...chat.Message) ([]chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range msgs {
		msgs[i].ID = newID()
		repo.db.messages = append(repo.db.messages, msgs[i])
	}
	return msgs, nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, studentID string, limit int) ([]chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// messages are appended in creation order
	msgs := make([]chat.Message, 0)
	for _, m := range repo.db.messages {
		if m.StudentID == studentID {
			msgs = append(msgs, m)
		}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
