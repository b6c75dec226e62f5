package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Live event names pushed to relay connections.
const (
	EventReceiveMessage  = "receiveMessage"
	EventNewNotification = "newNotification"
)

// Pusher delivers a live event to every connection registered under userID.
// A recipient with no live connection is not an error; the durable rows are
// the system of record.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// Service runs the whole "message received" pipeline in one place: persist
// the message, write the durable notification, then push both live events.
// Keeping the durable write and the live push on a single code path is what
// prevents the two notification mechanisms from diverging.
type Service struct {
	repo     repository.MessageRepository
	notifSvc notification.Service
	pusher   Pusher
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(repo repository.MessageRepository, notifSvc notification.Service, pusher Pusher, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		notifSvc: notifSvc,
		pusher:   pusher,
		logger:   logger,
		metrics:  m,
	}
}

// Send persists the message and fans out. Only the persistence step can fail
// the call; notification and live delivery are best-effort once the message
// row is committed.
func (s *Service) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*model.Message, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, apperrors.BadRequest("sender and receiver are required", nil)
	}
	if content == "" {
		return nil, apperrors.BadRequest("content is required", nil)
	}
	if senderID == receiverID {
		return nil, apperrors.BadRequest("cannot message yourself", nil)
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	notif, err := s.notifSvc.Notify(ctx, receiverID, model.NotificationTypeMessage,
		fmt.Sprintf("New message from %s", senderID), model.FromMessage(msg.ID))
	if err != nil {
		s.logger.Error(err, "message notification fan-out failed",
			"message_id", msg.ID.String(),
			"receiver_id", receiverID.String())
		s.metrics.NotificationFanoutErrors.WithLabelValues("message").Inc()
	}

	s.push(ctx, receiverID, EventReceiveMessage, msg)
	if notif != nil {
		s.push(ctx, receiverID, EventNewNotification, notif)
	}

	return msg, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return s.repo.Get(ctx, id)
}

// MarkRead flips the read flag; only the receiver may do so.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	msg, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.ReceiverID != userID {
		return apperrors.Unauthorized(fmt.Errorf("user %s is not the receiver", userID))
	}
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Message, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Conversation(ctx context.Context, senderID, receiverID uuid.UUID) ([]*model.Message, error) {
	return s.repo.ListConversation(ctx, senderID, receiverID)
}

func (s *Service) push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if err := s.pusher.Push(ctx, userID, event, payload); err != nil {
		s.logger.Warn("live push failed",
			"user_id", userID.String(),
			"event", event,
			"error", err.Error())
	}
}
