package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	cacheTTL        = 5 * time.Minute
	cacheSweep      = 10 * time.Minute
	emailSendBudget = 10 * time.Second
)

// Service is the only creation path for notification rows. Lifecycle and
// messaging components call Notify after their own primary write has
// committed; a failure here must never unwind that write.
type Service interface {
	Notify(ctx context.Context, userID uuid.UUID, typ model.NotificationType, message string, origin model.NotificationOrigin) (*model.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type service struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	emailSvc email.Service
	cache    *gocache.Cache
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewService creates the fan-out service. emailSvc may be nil; the email
// channel is then disabled and only durable rows are written.
func NewService(repo repository.NotificationRepository, userRepo repository.UserRepository, emailSvc email.Service, logger *logger.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:     repo,
		userRepo: userRepo,
		emailSvc: emailSvc,
		cache:    gocache.New(cacheTTL, cacheSweep),
		logger:   logger,
		metrics:  m,
	}
}

func (s *service) Notify(ctx context.Context, userID uuid.UUID, typ model.NotificationType, message string, origin model.NotificationOrigin) (*model.Notification, error) {
	if userID == uuid.Nil {
		return nil, apperrors.BadRequest("user ID is required", nil)
	}
	if !origin.Valid() {
		return nil, apperrors.BadRequest("notification origin must reference at most one event", nil)
	}

	notification := &model.Notification{
		UserID:        userID,
		MessageID:     origin.MessageID,
		AppointmentID: origin.AppointmentID,
		Message:       message,
		Read:          false,
		Type:          typ,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.metrics.NotificationsCreated.WithLabelValues(string(typ)).Inc()
	s.cache.Delete(unreadKey(userID))

	// Appointment notifications also go out by email, best-effort. The
	// durable row above is already committed; email failure is only logged.
	if s.emailSvc != nil && origin.AppointmentID != nil {
		go s.sendEmail(notification)
	}

	return notification, nil
}

func (s *service) MarkRead(ctx context.Context, id uuid.UUID) error {
	notification, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.MarkRead(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(unreadKey(notification.UserID))
	return nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	key := unreadKey(userID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(int), nil
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, count, gocache.DefaultExpiration)
	return count, nil
}

func (s *service) sendEmail(notification *model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), emailSendBudget)
	defer cancel()

	user, err := s.lookupUser(ctx, notification.UserID)
	if err != nil {
		s.logger.Error(err, "notification email skipped: user lookup failed",
			"user_id", notification.UserID.String())
		s.metrics.EmailDeliveryErrors.Inc()
		return
	}

	if err := s.emailSvc.SendCustom(ctx, user.Email, "Appointment update", notification.Message); err != nil {
		s.logger.Error(err, "notification email delivery failed",
			"user_id", notification.UserID.String())
		s.metrics.EmailDeliveryErrors.Inc()
	}
}

func (s *service) lookupUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	key := "user:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.User), nil
	}

	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, user, gocache.DefaultExpiration)
	return user, nil
}

func unreadKey(userID uuid.UUID) string {
	return "unread:" + userID.String()
}
