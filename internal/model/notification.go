package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeMessage              NotificationType = "MESSAGE"
	NotificationTypeAppointmentScheduled NotificationType = "APPOINTMENT_SCHEDULED"
	NotificationTypeAppointmentApproved  NotificationType = "APPOINTMENT_APPROVED"
	NotificationTypeAppointmentCancelled NotificationType = "APPOINTMENT_CANCELLED"
)

type Notification struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	UserID        uuid.UUID        `db:"user_id" json:"user_id"`
	MessageID     *uuid.UUID       `db:"message_id" json:"message_id,omitempty"`
	AppointmentID *uuid.UUID       `db:"appointment_id" json:"appointment_id,omitempty"`
	Message       string           `db:"message" json:"message"`
	Read          bool             `db:"read" json:"read"`
	Type          NotificationType `db:"type" json:"type"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// NotificationOrigin references the event a notification was created for.
// At most one of the two fields may be set; a zero value means a generic
// notification with no origin.
type NotificationOrigin struct {
	MessageID     *uuid.UUID
	AppointmentID *uuid.UUID
}

// FromMessage builds an origin referencing a message.
func FromMessage(id uuid.UUID) NotificationOrigin {
	return NotificationOrigin{MessageID: &id}
}

// FromAppointment builds an origin referencing an appointment.
func FromAppointment(id uuid.UUID) NotificationOrigin {
	return NotificationOrigin{AppointmentID: &id}
}

// Valid reports whether the origin references at most one event.
func (o NotificationOrigin) Valid() bool {
	return o.MessageID == nil || o.AppointmentID == nil
}
