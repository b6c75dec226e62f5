package message

import (
	"context"
	"errors"
	"fmt"
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

var testMetrics = metrics.NewMetrics("clinic_test", "message")

type fakeMessageRepo struct {
	messages  map[uuid.UUID]*model.Message
	createErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uuid.UUID]*model.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *model.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	r.messages[msg.ID] = msg
	return nil
}

func (r *fakeMessageRepo) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message", nil)
	}
	return msg, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	msg, ok := r.messages[id]
	if !ok {
		return apperrors.NotFound("message", nil)
	}
	msg.Read = true
	return nil
}

func (r *fakeMessageRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*model.Message, error) {
	var out []*model.Message
	for _, msg := range r.messages {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) ListConversation(_ context.Context, senderID, receiverID uuid.UUID) ([]*model.Message, error) {
	var out []*model.Message
	for _, msg := range r.messages {
		if (msg.SenderID == senderID && msg.ReceiverID == receiverID) ||
			(msg.SenderID == receiverID && msg.ReceiverID == senderID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

type notifyCall struct {
	userID  uuid.UUID
	typ     model.NotificationType
	message string
	origin  model.NotificationOrigin
}

type fakeNotifier struct {
	calls []notifyCall
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, typ model.NotificationType, message string, origin model.NotificationOrigin) (*model.Notification, error) {
	n.calls = append(n.calls, notifyCall{userID: userID, typ: typ, message: message, origin: origin})
	if n.err != nil {
		return nil, n.err
	}
	return &model.Notification{ID: uuid.New(), UserID: userID, Message: message, Type: typ}, nil
}

func (n *fakeNotifier) MarkRead(context.Context, uuid.UUID) error { return nil }

func (n *fakeNotifier) ListForUser(context.Context, uuid.UUID) ([]*model.Notification, error) {
	return nil, nil
}

func (n *fakeNotifier) UnreadCount(context.Context, uuid.UUID) (int, error) { return 0, nil }

type pushCall struct {
	userID  uuid.UUID
	event   string
	payload interface{}
}

type fakePusher struct {
	calls []pushCall
	err   error
}

func (p *fakePusher) Push(_ context.Context, userID uuid.UUID, event string, payload interface{}) error {
	p.calls = append(p.calls, pushCall{userID: userID, event: event, payload: payload})
	return p.err
}

func newTestService(repo *fakeMessageRepo, notifier *fakeNotifier, pusher *fakePusher) *Service {
	return NewService(repo, notifier, pusher, logger.NewLogger(nil), testMetrics)
}

func TestSendRunsFullPipeline(t *testing.T) {
	repo := newFakeMessageRepo()
	notifier := &fakeNotifier{}
	pusher := &fakePusher{}
	svc := newTestService(repo, notifier, pusher)

	senderID := uuid.New()
	receiverID := uuid.New()
	msg, err := svc.Send(context.Background(), senderID, receiverID, "lab results are in")
	require.NoError(t, err)
	require.NotNil(t, msg)

	// Durable message row.
	stored, err := svc.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, senderID, stored.SenderID)
	assert.Equal(t, receiverID, stored.ReceiverID)
	assert.False(t, stored.Read)

	// Durable notification for the receiver, referencing the message.
	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, receiverID, call.userID)
	assert.Equal(t, model.NotificationTypeMessage, call.typ)
	assert.Equal(t, fmt.Sprintf("New message from %s", senderID), call.message)
	require.NotNil(t, call.origin.MessageID)
	assert.Equal(t, msg.ID, *call.origin.MessageID)

	// Both live events, both addressed to the receiver.
	require.Len(t, pusher.calls, 2)
	assert.Equal(t, EventReceiveMessage, pusher.calls[0].event)
	assert.Equal(t, receiverID, pusher.calls[0].userID)
	assert.Equal(t, EventNewNotification, pusher.calls[1].event)
	assert.Equal(t, receiverID, pusher.calls[1].userID)
}

func TestSendValidation(t *testing.T) {
	svc := newTestService(newFakeMessageRepo(), &fakeNotifier{}, &fakePusher{})
	userID := uuid.New()

	tests := []struct {
		name     string
		sender   uuid.UUID
		receiver uuid.UUID
		content  string
	}{
		{"missing sender", uuid.Nil, uuid.New(), "hi"},
		{"missing receiver", uuid.New(), uuid.Nil, "hi"},
		{"empty content", uuid.New(), uuid.New(), ""},
		{"self message", userID, userID, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), tt.sender, tt.receiver, tt.content)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
		})
	}
}

func TestSendFailsWhenPersistenceFails(t *testing.T) {
	repo := newFakeMessageRepo()
	repo.createErr = errors.New("db down")
	notifier := &fakeNotifier{}
	pusher := &fakePusher{}
	svc := newTestService(repo, notifier, pusher)

	_, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "hi")
	require.Error(t, err)

	// Nothing downstream runs when the primary write fails.
	assert.Empty(t, notifier.calls)
	assert.Empty(t, pusher.calls)
}

func TestSendSurvivesNotifierFailure(t *testing.T) {
	repo := newFakeMessageRepo()
	notifier := &fakeNotifier{err: errors.New("notification store down")}
	pusher := &fakePusher{}
	svc := newTestService(repo, notifier, pusher)

	msg, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "hi")
	require.NoError(t, err, "message delivery must not depend on the notification write")
	require.NotNil(t, msg)

	// The message event still goes out; the notification event is skipped
	// because there is no notification to push.
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, EventReceiveMessage, pusher.calls[0].event)
}

func TestSendSurvivesPushFailure(t *testing.T) {
	repo := newFakeMessageRepo()
	notifier := &fakeNotifier{}
	pusher := &fakePusher{err: errors.New("no live connection")}
	svc := newTestService(repo, notifier, pusher)

	msg, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "hi")
	require.NoError(t, err, "an offline recipient is not an error")
	require.NotNil(t, msg)
	require.Len(t, notifier.calls, 1, "durable notification still written")
}

func TestMarkReadOnlyByReceiver(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeNotifier{}, &fakePusher{})

	senderID := uuid.New()
	receiverID := uuid.New()
	msg, err := svc.Send(context.Background(), senderID, receiverID, "hi")
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), msg.ID, senderID)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)

	require.NoError(t, svc.MarkRead(context.Background(), msg.ID, receiverID))
	stored, err := svc.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
}

func TestConversationIncludesBothDirections(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeNotifier{}, &fakePusher{})

	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	_, err := svc.Send(context.Background(), alice, bob, "hi bob")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), bob, alice, "hi alice")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), alice, carol, "hi carol")
	require.NoError(t, err)

	conv, err := svc.Conversation(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Len(t, conv, 2)
}
