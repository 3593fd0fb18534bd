package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type blockedIntervalRepository struct {
	BaseRepository
}

func NewBlockedIntervalRepository(base BaseRepository) repository.BlockedIntervalRepository {
	return &blockedIntervalRepository{base}
}

func (r *blockedIntervalRepository) Create(ctx context.Context, b *model.BlockedInterval) error {
	query := `
		INSERT INTO blocked_intervals (
			id, provider_id, date, time_from, time_to, reason, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.ProviderID, b.Date, b.TimeFrom, b.TimeTo, b.Reason, b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blocked interval: %w", err)
	}
	return nil
}

func (r *blockedIntervalRepository) Get(ctx context.Context, id uuid.UUID) (*model.BlockedInterval, error) {
	query := `
		SELECT id, provider_id, date, time_from, time_to, reason, created_by, created_at, updated_at
		FROM blocked_intervals
		WHERE id = $1
	`
	var b model.BlockedInterval
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *blockedIntervalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blocked_intervals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocked interval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *blockedIntervalRepository) ListByProviderDate(ctx context.Context, providerID uuid.UUID, date model.Date) ([]*model.BlockedInterval, error) {
	query := `
		SELECT id, provider_id, date, time_from, time_to, reason, created_by, created_at, updated_at
		FROM blocked_intervals
		WHERE provider_id = $1 AND date = $2
		ORDER BY time_from
	`
	var blocked []*model.BlockedInterval
	if err := r.db.SelectContext(ctx, &blocked, query, providerID, date); err != nil {
		return nil, fmt.Errorf("failed to list blocked intervals: %w", err)
	}
	return blocked, nil
}
