package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

var blockedColumnNames = []string{
	"id", "provider_id", "date", "time_from", "time_to", "reason", "created_by", "created_at", "updated_at",
}

func TestBlockedIntervalRepository_Create(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBlockedIntervalRepository(base)
	staffID := uuid.New()
	b := &model.BlockedInterval{
		ProviderID: uuid.New(),
		Date:       model.NewDate(2024, time.March, 4),
		TimeFrom:   model.NewTimeOfDay(13, 0),
		TimeTo:     model.MinutesPerDay,
		Reason:     "training",
		CreatedBy:  &staffID,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocked_intervals")).
		WithArgs(sqlmock.AnyArg(), b.ProviderID, "2024-03-04", "13:00:00", "24:00:00", "training",
			staffID.String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), b))
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockedIntervalRepository_Get(t *testing.T) {
	query := regexp.QuoteMeta("FROM blocked_intervals") + `\s+` + regexp.QuoteMeta("WHERE id = $1")

	t.Run("found", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewBlockedIntervalRepository(base)
		id, providerID := uuid.New(), uuid.New()
		now := time.Now()

		mock.ExpectQuery(query).WithArgs(id).
			WillReturnRows(sqlmock.NewRows(blockedColumnNames).AddRow(
				id.String(), providerID.String(), "2024-03-04", "20:00:00",
				time.Date(0, 1, 2, 0, 0, 0, 0, time.UTC), "closing", nil, now, now))

		b, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, providerID, b.ProviderID)
		assert.Equal(t, model.TimeSlot{Start: model.NewTimeOfDay(20, 0), End: model.MinutesPerDay}, b.Slot())
		assert.Nil(t, b.CreatedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewBlockedIntervalRepository(base)

		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(blockedColumnNames))

		_, err := repo.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestBlockedIntervalRepository_Delete(t *testing.T) {
	query := regexp.QuoteMeta("DELETE FROM blocked_intervals WHERE id = $1")

	base, mock := newMockBase(t)
	repo := NewBlockedIntervalRepository(base)
	id := uuid.New()

	mock.ExpectExec(query).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), id))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockedIntervalRepository_ListByProviderDate(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBlockedIntervalRepository(base)
	providerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE provider_id = $1 AND date = $2")+`\s+`+regexp.QuoteMeta("ORDER BY time_from")).
		WithArgs(providerID, "2024-03-04").
		WillReturnRows(sqlmock.NewRows(blockedColumnNames).
			AddRow(uuid.NewString(), providerID.String(), "2024-03-04", "09:00:00", "10:00:00", "", nil, now, now).
			AddRow(uuid.NewString(), providerID.String(), "2024-03-04", "14:00:00", "15:00:00", "lunch", nil, now, now))

	got, err := repo.ListByProviderDate(context.Background(), providerID, model.NewDate(2024, time.March, 4))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.NewTimeOfDay(14, 0), got[1].TimeFrom)
	assert.Equal(t, "lunch", got[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
