package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("clinic_test", "notification")

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
	countCalls    int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[uuid.UUID]*model.Notification)}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	r.notifications[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	n.Read = true
	return nil
}

func (r *fakeNotificationRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

type fakeUserRepo struct{}

func (fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	return &model.User{ID: id, Email: "patient@example.com"}, nil
}

func newTestService(repo *fakeNotificationRepo) Service {
	return NewService(repo, fakeUserRepo{}, nil, logger.NewLogger(nil), testMetrics)
}

func TestNotifyCreatesDurableRow(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestService(repo)

	userID := uuid.New()
	aptID := uuid.New()
	n, err := svc.Notify(context.Background(), userID, model.NotificationTypeAppointmentApproved,
		"Your appointment has been approved", model.FromAppointment(aptID))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, userID, n.UserID)
	assert.False(t, n.Read)
	require.NotNil(t, n.AppointmentID)
	assert.Equal(t, aptID, *n.AppointmentID)
	assert.Nil(t, n.MessageID)

	stored, err := svc.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestNotifyRejectsNilUser(t *testing.T) {
	svc := newTestService(newFakeNotificationRepo())

	_, err := svc.Notify(context.Background(), uuid.Nil, model.NotificationTypeMessage, "hi", model.NotificationOrigin{})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestNotifyRejectsAmbiguousOrigin(t *testing.T) {
	svc := newTestService(newFakeNotificationRepo())

	msgID := uuid.New()
	aptID := uuid.New()
	_, err := svc.Notify(context.Background(), uuid.New(), model.NotificationTypeMessage, "hi",
		model.NotificationOrigin{MessageID: &msgID, AppointmentID: &aptID})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestService(repo)

	userID := uuid.New()
	n, err := svc.Notify(context.Background(), userID, model.NotificationTypeMessage, "hi", model.FromMessage(uuid.New()))
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), n.ID))
	require.NoError(t, svc.MarkRead(context.Background(), n.ID), "second mark-read must succeed")

	count, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkReadUnknownNotificationNotFound(t *testing.T) {
	svc := newTestService(newFakeNotificationRepo())

	err := svc.MarkRead(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUnreadCountIsCachedAndInvalidated(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestService(repo)

	userID := uuid.New()
	_, err := svc.Notify(context.Background(), userID, model.NotificationTypeMessage, "one", model.FromMessage(uuid.New()))
	require.NoError(t, err)

	count, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Second read is served from cache.
	calls := repo.countCalls
	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, calls, repo.countCalls)

	// A new notification invalidates the cached count.
	n, err := svc.Notify(context.Background(), userID, model.NotificationTypeMessage, "two", model.FromMessage(uuid.New()))
	require.NoError(t, err)

	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Marking one read invalidates it again.
	require.NoError(t, svc.MarkRead(context.Background(), n.ID))
	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
