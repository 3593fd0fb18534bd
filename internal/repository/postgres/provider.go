package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(base BaseRepository) repository.ProviderRepository {
	return &providerRepository{base}
}

func (r *providerRepository) GetProfile(ctx context.Context, providerID uuid.UUID) (*model.ProviderAvailabilityProfile, error) {
	query := `
		SELECT provider_id, work_day_from, work_day_to, work_time_from, work_time_to, slot_minutes
		FROM provider_availability_profiles
		WHERE provider_id = $1
	`
	var p model.ProviderAvailabilityProfile
	if err := r.db.GetContext(ctx, &p, query, providerID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
