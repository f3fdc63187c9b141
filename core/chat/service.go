package chat

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edvora/edvora/core"
)

// Roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type (
	Message struct {
		ID        string    `json:"id" db:"id"`
		StudentID string    `json:"student_id" db:"student_id"`
		Role      string    `json:"role" db:"role"`
		Content   string    `json:"content" db:"content"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	NewMessage struct {
		Content string `json:"content" validate:"required,notblank,max=2000"`
	}

	// Exchange is a message of the student & the assistant's reply.
	Exchange struct {
		Question Message `json:"question"`
		Reply    Message `json:"reply"`
	}

	Repository interface {
		CreateMessages(ctx context.Context, msgs ...Message) ([]Message, error)
		// QueryMessages returns the student's last `limit` messages, oldest first.
		QueryMessages(ctx context.Context, studentID string, limit int) ([]Message, error)
	}

	ServiceInterface interface {
		Send(ctx context.Context, studentID string, nm NewMessage) (Exchange, error)
		History(ctx context.Context, studentID string, limit int) ([]Message, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

func NewService(repo Repository) ServiceInterface {
	return &service{repo: repo}
}

// Send stores the student's message along with the assistant's reply.
func (svc *service) Send(ctx context.Context, studentID string, nm NewMessage) (Exchange, error) {
	if nm.Content == "" {
		return Exchange{}, core.NewFieldValidationError("content", "this field cannot be blank")
	}

	now := time.Now().UTC()
	msgs, err := svc.repo.CreateMessages(ctx,
		Message{StudentID: studentID, Role: RoleUser, Content: nm.Content, CreatedAt: now},
		// the reply is stamped after the question so that history keeps them in order
		Message{StudentID: studentID, Role: RoleAssistant, Content: Respond(nm.Content), CreatedAt: now.Add(time.Microsecond)},
	)
	if err != nil {
		return Exchange{}, errors.Wrap(err, "creating messages")
	}
	return Exchange{Question: msgs[0], Reply: msgs[1]}, nil
}

// History lists the conversation, oldest first. An empty conversation starts with the greeting,
// which is never stored.
func (svc *service) History(ctx context.Context, studentID string, limit int) ([]Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	msgs, err := svc.repo.QueryMessages(ctx, studentID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	if len(msgs) == 0 {
		return []Message{{StudentID: studentID, Role: RoleAssistant, Content: Greeting}}, nil
	}
	return msgs, nil
}
