package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// CreateBlockedInterval reserves a window for staff. It refuses to block
// over a live appointment; cancel or move that first.
func (s *Service) CreateBlockedInterval(ctx context.Context, b *model.BlockedInterval) error {
	switch {
	case b.ProviderID == uuid.Nil:
		return apperrors.BadRequest("provider is required", nil)
	case b.Date.IsZero():
		return apperrors.BadRequest("date is required", nil)
	case b.TimeFrom < 0 || b.TimeTo > model.MinutesPerDay || b.TimeFrom >= b.TimeTo:
		return apperrors.BadRequest("time_from must be before time_to within one day", nil)
	}

	verdicts, err := s.detector.Evaluate(ctx, b.ProviderID, b.Date, []model.TimeSlot{b.Slot()}, nil)
	if err != nil {
		return err
	}
	if v := verdicts[0]; !v.Available && v.Reason == ReasonBooked {
		return &SlotUnavailableError{ProviderID: b.ProviderID, Date: b.Date, Slot: b.Slot(), Reason: ReasonBooked}
	}

	if err := s.blocked.Create(ctx, b); err != nil {
		return lookupError("create blocked interval", err)
	}
	s.log.Info("blocked interval created",
		"blocked_interval_id", b.ID.String(), "provider_id", b.ProviderID.String(),
		"date", b.Date.String(), "slot", b.Slot().String())
	return nil
}

// DeleteBlockedInterval removes the interval and returns the row as it was,
// so callers can report which provider and window were freed.
func (s *Service) DeleteBlockedInterval(ctx context.Context, id uuid.UUID) (*model.BlockedInterval, error) {
	b, err := s.blocked.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("blocked interval", id, err)
		}
		return nil, lookupError("get blocked interval", err)
	}
	if err := s.blocked.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("blocked interval", id, err)
		}
		return nil, lookupError("delete blocked interval", err)
	}
	s.log.Info("blocked interval deleted",
		"blocked_interval_id", id.String(), "provider_id", b.ProviderID.String(),
		"date", b.Date.String(), "slot", b.Slot().String())
	return b, nil
}

func (s *Service) ListBlockedIntervals(ctx context.Context, providerID uuid.UUID, date model.Date) ([]*model.BlockedInterval, error) {
	blocked, err := s.blocked.ListByProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, lookupError("list blocked intervals", err)
	}
	if blocked == nil {
		blocked = []*model.BlockedInterval{}
	}
	return blocked, nil
}
