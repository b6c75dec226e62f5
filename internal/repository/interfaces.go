package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository handles appointment persistence. UpdateStatus is
	// the only status mutation path: the update is conditional on the current
	// status so concurrent transitions on the same row cannot both succeed.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateStatus transitions id from `from` to `to`. Returns the updated
		// row, errors.ErrNotFound if the id is unknown, or errors.ErrConflict
		// if the row exists but is no longer in `from`.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (*model.Appointment, error)
		Reschedule(ctx context.Context, id uuid.UUID, patch *model.RescheduleAppointmentRequest) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		// MarkRead flips read to true. Idempotent: marking an already-read
		// notification succeeds without touching the row content again.
		MarkRead(ctx context.Context, id uuid.UUID) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
		CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	}

	MessageRepository interface {
		Create(ctx context.Context, message *model.Message) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		MarkRead(ctx context.Context, id uuid.UUID) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Message, error)
		ListConversation(ctx context.Context, senderID, receiverID uuid.UUID) ([]*model.Message, error)
	}

	// PostRepository maintains posts, comments, and the like set. AddLike and
	// RemoveLike report whether a row actually changed so callers only adjust
	// the counter for real inserts/deletes; the counter mutation itself is a
	// single atomic store-level increment.
	PostRepository interface {
		Create(ctx context.Context, post *model.Post) error
		Get(ctx context.Context, id uuid.UUID) (*model.Post, error)
		List(ctx context.Context) ([]*model.Post, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Post, error)
		AddComment(ctx context.Context, comment *model.Comment) error
		AddLike(ctx context.Context, postID, userID uuid.UUID) (inserted bool, err error)
		RemoveLike(ctx context.Context, postID, userID uuid.UUID) (removed bool, err error)
		AdjustLikesCount(ctx context.Context, postID uuid.UUID, delta int) error
		CountLikes(ctx context.Context, postID uuid.UUID) (int, error)
	}

	// UserRepository is the read-only surface of the account collaborator.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}
)
