package appointment

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

// Notification copy per transition. One notification row per lifecycle
// transition, always addressed to the booking patient.
const (
	msgScheduled = "Your appointment has been created"
	msgApproved  = "Your appointment has been approved"
	msgCanceled  = "Your appointment has been canceled"
)

type Service struct {
	repo     repository.AppointmentRepository
	notifSvc notification.Service
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(repo repository.AppointmentRepository, notifSvc notification.Service, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		notifSvc: notifSvc,
		logger:   logger,
		metrics:  m,
	}
}

// Create books a new appointment in PENDING state. Timeslot availability is
// deliberately not checked here; see DESIGN.md for the open question.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		TimeslotID: req.TimeslotID,
		Date:       req.Date,
		Reason:     req.Reason,
		Status:     model.AppointmentStatusPending,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusPending)).Inc()
	s.fanout(ctx, apt, model.NotificationTypeAppointmentScheduled, msgScheduled)

	return apt, nil
}

// Approve transitions PENDING -> APPROVED. A missing appointment surfaces as
// a not-found error; one already in a terminal state as a conflict. Exactly
// one notification is emitted per successful transition.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.AppointmentStatusApproved, model.NotificationTypeAppointmentApproved, msgApproved)
}

// Cancel transitions PENDING -> CANCELED with the same error contract as
// Approve.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.AppointmentStatusCanceled, model.NotificationTypeAppointmentCancelled, msgCanceled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, notifType model.NotificationType, notifMsg string) error {
	apt, err := s.repo.UpdateStatus(ctx, id, model.AppointmentStatusPending, to)
	if err != nil {
		if apperrors.IsConflict(err) {
			s.metrics.TransitionConflicts.Inc()
		}
		return err
	}

	s.metrics.AppointmentTransitions.WithLabelValues(string(to)).Inc()
	s.fanout(ctx, apt, notifType, notifMsg)
	return nil
}

// Reschedule mutates the patient-editable fields only. Status never changes
// here, so no notification is emitted.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, patch *model.RescheduleAppointmentRequest) error {
	if patch.TimeslotID == nil && patch.Date == nil && patch.Reason == nil {
		return apperrors.BadRequest("no fields to update", nil)
	}
	return s.repo.Reschedule(ctx, id, patch)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

// fanout writes the lifecycle notification for an already-committed
// transition. The primary write is never rolled back by a fan-out failure;
// the loss is logged and counted so operators can detect it.
func (s *Service) fanout(ctx context.Context, apt *model.Appointment, typ model.NotificationType, msg string) {
	_, err := s.notifSvc.Notify(ctx, apt.PatientID, typ, msg, model.FromAppointment(apt.ID))
	if err != nil {
		s.logger.Error(err, "appointment notification fan-out failed",
			"appointment_id", apt.ID.String(),
			"patient_id", apt.PatientID.String(),
			"type", string(typ))
		s.metrics.NotificationFanoutErrors.WithLabelValues("appointment").Inc()
	}
}

func validateCreate(req *model.CreateAppointmentRequest) error {
	if req.PatientID == uuid.Nil {
		return apperrors.BadRequest("patient ID is required", nil)
	}
	if req.DoctorID == uuid.Nil {
		return apperrors.BadRequest("doctor ID is required", nil)
	}
	if req.TimeslotID == uuid.Nil {
		return apperrors.BadRequest("timeslot ID is required", nil)
	}
	if req.Date.IsZero() {
		return apperrors.BadRequest("date is required", nil)
	}
	return nil
}
