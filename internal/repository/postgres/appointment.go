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

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, timeslot_id,
			date, reason, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.TimeslotID,
		appointment.Date,
		appointment.Reason,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to create appointment: %w", err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, timeslot_id,
			   date, reason, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return &appointment, nil
}

// UpdateStatus performs a conditional update so the terminal-state check is
// authoritative at the store: two concurrent transitions on the same row can
// never both match the `status = from` guard.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING id, patient_id, doctor_id, timeslot_id,
				  date, reason, status, created_at, updated_at
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, to, time.Now(), id, from)
	if err == nil {
		return &appointment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Internal(fmt.Errorf("failed to update appointment status: %w", err))
	}

	// The guard did not match: distinguish a missing row from a row that
	// already left the expected state.
	var current model.AppointmentStatus
	err = r.db.GetContext(ctx, &current, `SELECT status FROM appointments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to check appointment status: %w", err))
	}
	return nil, apperrors.Conflict(
		fmt.Sprintf("appointment cannot transition from %s to %s", current, to), nil)
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, patch *model.RescheduleAppointmentRequest) error {
	query := `
		UPDATE appointments
		SET timeslot_id = COALESCE($1, timeslot_id),
			date = COALESCE($2, date),
			reason = COALESCE($3, reason),
			updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		patch.TimeslotID,
		patch.Date,
		patch.Reason,
		time.Now(),
		id,
	)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to reschedule appointment: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, timeslot_id,
			   date, reason, status, created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
	}

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}
