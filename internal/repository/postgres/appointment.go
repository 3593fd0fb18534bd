package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const appointmentColumns = `
	id, patient_id, temp_patient_id, provider_id, date, time_from, time_to,
	fee, service_id, note, status, payment_status, cancel_reason,
	created_at, updated_at`

// appointmentRow mirrors the appointments table; the patient reference is
// stored as two nullable foreign keys.
type appointmentRow struct {
	ID            uuid.UUID               `db:"id"`
	PatientID     *uuid.UUID              `db:"patient_id"`
	TempPatientID *uuid.UUID              `db:"temp_patient_id"`
	ProviderID    uuid.UUID               `db:"provider_id"`
	Date          model.Date              `db:"date"`
	TimeFrom      model.TimeOfDay         `db:"time_from"`
	TimeTo        model.TimeOfDay         `db:"time_to"`
	Fee           float64                 `db:"fee"`
	ServiceID     *uuid.UUID              `db:"service_id"`
	Note          string                  `db:"note"`
	Status        model.AppointmentStatus `db:"status"`
	PaymentStatus model.PaymentStatus     `db:"payment_status"`
	CancelReason  *string                 `db:"cancel_reason"`
	CreatedAt     time.Time               `db:"created_at"`
	UpdatedAt     time.Time               `db:"updated_at"`
}

func (row *appointmentRow) toModel() (*model.Appointment, error) {
	ref, err := model.PatientRefFromColumns(row.PatientID, row.TempPatientID)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", row.ID, err)
	}
	return &model.Appointment{
		Base:          model.Base{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		Patient:       ref,
		ProviderID:    row.ProviderID,
		Date:          row.Date,
		TimeFrom:      row.TimeFrom,
		TimeTo:        row.TimeTo,
		Fee:           row.Fee,
		ServiceID:     row.ServiceID,
		Note:          row.Note,
		Status:        row.Status,
		PaymentStatus: row.PaymentStatus,
		CancelReason:  row.CancelReason,
	}, nil
}

func rowsToModels(rows []appointmentRow) ([]*model.Appointment, error) {
	out := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		apt, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, apt)
	}
	return out, nil
}

func statusArray(statuses []model.AppointmentStatus) interface{} {
	s := make([]string, len(statuses))
	for i, st := range statuses {
		s[i] = string(st)
	}
	return pq.Array(s)
}

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// ensureFree fails with ErrSlotConflict if the interval overlaps a live
// appointment (other than exclude) or a blocked interval.
func ensureFree(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date model.Date, slot model.TimeSlot, exclude *uuid.UUID) error {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1 AND date = $2 AND status <> 'cancelled'
			AND time_from < $4 AND time_to > $3
			AND ($5::uuid IS NULL OR id <> $5)
		) OR EXISTS (
			SELECT 1 FROM blocked_intervals
			WHERE provider_id = $1 AND date = $2
			AND time_from < $4 AND time_to > $3
		)
	`
	var taken bool
	if err := tx.GetContext(ctx, &taken, query, providerID, date, slot.Start, slot.End, exclude); err != nil {
		return fmt.Errorf("failed to check slot availability: %w", err)
	}
	if taken {
		return repository.ErrSlotConflict
	}
	return nil
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	if !apt.Patient.Valid() {
		return model.ErrInvalidPatientRef
	}
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now().UTC()
	apt.CreatedAt = now
	apt.UpdatedAt = now
	patientID, tempPatientID := apt.Patient.Columns()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := ensureFree(ctx, tx, apt.ProviderID, apt.Date, apt.Slot(), nil); err != nil {
			return err
		}

		query := `
			INSERT INTO appointments (` + appointmentColumns + `
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, query,
			apt.ID,
			patientID,
			tempPatientID,
			apt.ProviderID,
			apt.Date,
			apt.TimeFrom,
			apt.TimeTo,
			apt.Fee,
			apt.ServiceID,
			apt.Note,
			apt.Status,
			apt.PaymentStatus,
			apt.CancelReason,
			apt.CreatedAt,
			apt.UpdatedAt,
		)
		if err != nil {
			if mapped := mapWriteError(err); errors.Is(mapped, repository.ErrSlotConflict) {
				return mapped
			}
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var row appointmentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return row.toModel()
}

func (r *appointmentRepository) ListActiveByProviderDate(ctx context.Context, providerID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND status <> 'cancelled'
		AND ($3::uuid IS NULL OR id <> $3)
		ORDER BY time_from
	`
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, providerID, date, excludeID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return rowsToModels(rows)
}

func (r *appointmentRepository) ListByDate(ctx context.Context, date model.Date, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE date = $1 AND status = ANY($2)
		ORDER BY time_from, id
	`
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, date, statusArray(statuses)); err != nil {
		return nil, fmt.Errorf("failed to list appointments by date: %w", err)
	}
	return rowsToModels(rows)
}

func (r *appointmentRepository) ListStartingBefore(ctx context.Context, date model.Date, cutoff model.TimeOfDay, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE date = $1 AND time_from < $2 AND status = ANY($3)
		ORDER BY time_from, id
	`
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, date, cutoff, statusArray(statuses)); err != nil {
		return nil, fmt.Errorf("failed to list appointments starting before %s: %w", cutoff, err)
	}
	return rowsToModels(rows)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, cancelReason *string) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = COALESCE($2, cancel_reason), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, to, cancelReason, id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

// missOrStale explains a conditional update that touched nothing.
func (r *appointmentRepository) missOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleState
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, from model.AppointmentStatus, date model.Date, slot model.TimeSlot, to model.AppointmentStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current struct {
			ProviderID uuid.UUID               `db:"provider_id"`
			Status     model.AppointmentStatus `db:"status"`
		}
		err := tx.GetContext(ctx, &current,
			`SELECT provider_id, status FROM appointments WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to lock appointment: %w", err)
		}
		if current.Status != from {
			return repository.ErrStaleState
		}

		if err := ensureFree(ctx, tx, current.ProviderID, date, slot, &id); err != nil {
			return err
		}

		query := `
			UPDATE appointments
			SET date = $1, time_from = $2, time_to = $3, status = $4, updated_at = NOW()
			WHERE id = $5
		`
		if _, err := tx.ExecContext(ctx, query, date, slot.Start, slot.End, to, id); err != nil {
			if mapped := mapWriteError(err); errors.Is(mapped, repository.ErrSlotConflict) {
				return mapped
			}
			return fmt.Errorf("failed to reschedule appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) UpdateTempPatientStatuses(ctx context.Context, tempPatientID uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE temp_patient_id = $2 AND status = ANY($3)
	`
	result, err := r.db.ExecContext(ctx, query, to, tempPatientID, statusArray(from))
	if err != nil {
		return 0, fmt.Errorf("failed to confirm temp patient appointments: %w", err)
	}
	return result.RowsAffected()
}
