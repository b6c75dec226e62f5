package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending  AppointmentStatus = "PENDING"
	AppointmentStatusApproved AppointmentStatus = "APPROVED"
	AppointmentStatusCanceled AppointmentStatus = "CANCELED"
)

// Terminal reports whether no further transition is permitted out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusApproved || s == AppointmentStatusCanceled
}

// CanTransitionTo reports whether s -> next is a permitted edge. The only
// permitted edges are PENDING -> APPROVED and PENDING -> CANCELED.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == AppointmentStatusPending && next.Terminal()
}

type Appointment struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	PatientID  uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID   uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	TimeslotID uuid.UUID         `db:"timeslot_id" json:"timeslot_id"`
	Date       time.Time         `db:"date" json:"date"`
	Reason     string            `db:"reason" json:"reason,omitempty"`
	Status     AppointmentStatus `db:"status" json:"status"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateAppointmentRequest struct {
	PatientID  uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID   uuid.UUID `json:"doctor_id" binding:"required"`
	TimeslotID uuid.UUID `json:"timeslot_id" binding:"required"`
	Date       time.Time `json:"date" binding:"required"`
	Reason     string    `json:"reason" binding:"max=1000"`
}

// RescheduleAppointmentRequest carries the patient-mutable fields. Status is
// deliberately absent; transitions go through Approve/Cancel only.
type RescheduleAppointmentRequest struct {
	TimeslotID *uuid.UUID `json:"timeslot_id"`
	Date       *time.Time `json:"date"`
	Reason     *string    `json:"reason"`
}

type AppointmentFilters struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    AppointmentStatus
}
