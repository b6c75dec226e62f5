package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAppointmentStatusTransitions(t *testing.T) {
	assert.False(t, AppointmentStatusPending.Terminal())
	assert.True(t, AppointmentStatusApproved.Terminal())
	assert.True(t, AppointmentStatusCanceled.Terminal())

	assert.True(t, AppointmentStatusPending.CanTransitionTo(AppointmentStatusApproved))
	assert.True(t, AppointmentStatusPending.CanTransitionTo(AppointmentStatusCanceled))

	for _, from := range []AppointmentStatus{AppointmentStatusApproved, AppointmentStatusCanceled} {
		for _, to := range []AppointmentStatus{AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusCanceled} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be rejected", from, to)
		}
	}

	assert.False(t, AppointmentStatusPending.CanTransitionTo(AppointmentStatusPending))
}

func TestNotificationOriginValid(t *testing.T) {
	assert.True(t, NotificationOrigin{}.Valid())

	msgOrigin := FromMessage(uuid.New())
	assert.True(t, msgOrigin.Valid())

	aptOrigin := FromAppointment(uuid.New())
	assert.True(t, aptOrigin.Valid())

	both := NotificationOrigin{MessageID: msgOrigin.MessageID, AppointmentID: aptOrigin.AppointmentID}
	assert.False(t, both.Valid())
}
