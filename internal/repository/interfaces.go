package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrSlotConflict means the write would overlap a live appointment or a
	// blocked interval at commit time.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrStaleState means a conditional update found the row in a different
	// status than the caller observed.
	ErrStaleState = errors.New("appointment status changed concurrently")
	// ErrDuplicate means a row with the same id already exists.
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		// Create inserts the appointment after re-checking, in the same
		// transaction, that its interval is still free.
		Create(ctx context.Context, apt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// ListActiveByProviderDate returns non-cancelled appointments.
		ListActiveByProviderDate(ctx context.Context, providerID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]*model.Appointment, error)
		ListByDate(ctx context.Context, date model.Date, statuses []model.AppointmentStatus) ([]*model.Appointment, error)
		ListStartingBefore(ctx context.Context, date model.Date, cutoff model.TimeOfDay, statuses []model.AppointmentStatus) ([]*model.Appointment, error)
		// UpdateStatus writes only if the row is still in status from.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, cancelReason *string) error
		// Reschedule moves the appointment if the row is still in status
		// from and the new interval is free, excluding the row itself.
		Reschedule(ctx context.Context, id uuid.UUID, from model.AppointmentStatus, date model.Date, slot model.TimeSlot, to model.AppointmentStatus) error
		// UpdateTempPatientStatuses moves every appointment of the temp patient
		// currently in one of from to status to, returning the count moved.
		UpdateTempPatientStatuses(ctx context.Context, tempPatientID uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error)
	}

	BlockedIntervalRepository interface {
		Create(ctx context.Context, b *model.BlockedInterval) error
		Get(ctx context.Context, id uuid.UUID) (*model.BlockedInterval, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListByProviderDate(ctx context.Context, providerID uuid.UUID, date model.Date) ([]*model.BlockedInterval, error)
	}

	ProviderRepository interface {
		GetProfile(ctx context.Context, providerID uuid.UUID) (*model.ProviderAvailabilityProfile, error)
	}

	ContactRepository interface {
		// PatientContact resolves a patient or temp patient. A reference with
		// no contact on file returns an empty Contact, not an error.
		PatientContact(ctx context.Context, ref model.PatientRef) (*model.Contact, error)
		OverdueDigestSubscribers(ctx context.Context) ([]*model.StaffMember, error)
	}

	OutboxRepository interface {
		// Create returns ErrDuplicate when an event with the same id was
		// already enqueued; the existing row is left untouched.
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
