package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	query := `
		INSERT INTO messages (
			id, sender_id, receiver_id, content, read, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	message.ID = uuid.New()
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
		message.Read,
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to create message: %w", err))
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, read, created_at, updated_at
		FROM messages
		WHERE id = $1
	`
	var message model.Message
	err := r.db.GetContext(ctx, &message, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("message", err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get message: %w", err))
	}
	return &message, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE messages
		SET read = true, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to mark message read: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return apperrors.NotFound("message", nil)
	}
	return nil
}

func (r *messageRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, read, created_at, updated_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at ASC
	`
	var messages []*model.Message
	err := r.db.SelectContext(ctx, &messages, query, userID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list messages: %w", err))
	}
	return messages, nil
}

func (r *messageRepository) ListConversation(ctx context.Context, senderID, receiverID uuid.UUID) ([]*model.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, read, created_at, updated_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`
	var messages []*model.Message
	err := r.db.SelectContext(ctx, &messages, query, senderID, receiverID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list conversation: %w", err))
	}
	return messages, nil
}
