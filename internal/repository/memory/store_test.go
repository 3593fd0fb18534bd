package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

var testDate = model.NewDate(2024, time.March, 4)

func appointmentAt(providerID uuid.UUID, from, to model.TimeOfDay) *model.Appointment {
	return &model.Appointment{
		Patient:    model.RegularPatient(uuid.New()),
		ProviderID: providerID,
		Date:       testDate,
		TimeFrom:   from,
		TimeTo:     to,
		Status:     model.AppointmentStatusConfirmed,
	}
}

func TestCreate_ConcurrentBookingsOfSameSlot(t *testing.T) {
	store := NewStore()
	repo := store.Appointments()
	providerID := uuid.New()

	const attempts = 20
	var wg sync.WaitGroup
	var booked, conflicts int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(context.Background(),
				appointmentAt(providerID, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30)))
			switch err {
			case nil:
				atomic.AddInt32(&booked, 1)
			case repository.ErrSlotConflict:
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), booked)
	assert.Equal(t, int32(attempts-1), conflicts)
}

func TestCreate_OverlapRules(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Appointments()
	providerID := uuid.New()

	first := appointmentAt(providerID, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30))
	require.NoError(t, repo.Create(ctx, first))

	// touching intervals do not overlap
	require.NoError(t, repo.Create(ctx, appointmentAt(providerID, model.NewTimeOfDay(9, 30), model.NewTimeOfDay(10, 0))))

	// another provider is unaffected
	require.NoError(t, repo.Create(ctx, appointmentAt(uuid.New(), model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30))))

	err := repo.Create(ctx, appointmentAt(providerID, model.NewTimeOfDay(9, 15), model.NewTimeOfDay(9, 45)))
	assert.ErrorIs(t, err, repository.ErrSlotConflict)

	// a cancelled appointment frees its slot
	require.NoError(t, repo.UpdateStatus(ctx, first.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled, nil))
	require.NoError(t, repo.Create(ctx, appointmentAt(providerID, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30))))
}

func TestCreate_BlockedIntervalConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	providerID := uuid.New()

	require.NoError(t, store.BlockedIntervals().Create(ctx, &model.BlockedInterval{
		ProviderID: providerID,
		Date:       testDate,
		TimeFrom:   model.NewTimeOfDay(12, 0),
		TimeTo:     model.NewTimeOfDay(13, 0),
	}))

	err := store.Appointments().Create(ctx, appointmentAt(providerID, model.NewTimeOfDay(12, 30), model.NewTimeOfDay(13, 0)))
	assert.ErrorIs(t, err, repository.ErrSlotConflict)
}

func TestUpdateStatus_Conditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Appointments()
	apt := appointmentAt(uuid.New(), model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30))
	require.NoError(t, repo.Create(ctx, apt))

	reason := "patient request"
	require.NoError(t, repo.UpdateStatus(ctx, apt.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled, &reason))

	err := repo.UpdateStatus(ctx, apt.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCheckedIn, nil)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	err = repo.UpdateStatus(ctx, uuid.New(), model.AppointmentStatusConfirmed, model.AppointmentStatusCheckedIn, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, reason, *got.CancelReason)
}

func TestReschedule_ExcludesSelf(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Appointments()
	providerID := uuid.New()
	apt := appointmentAt(providerID, model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0))
	require.NoError(t, repo.Create(ctx, apt))

	// shifting inside its own old window is allowed
	slot := model.TimeSlot{Start: model.NewTimeOfDay(9, 30), End: model.NewTimeOfDay(10, 30)}
	require.NoError(t, repo.Reschedule(ctx, apt.ID, model.AppointmentStatusConfirmed, testDate, slot, model.AppointmentStatusConfirmed))

	got, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, slot, got.Slot())
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Appointments()
	apt := appointmentAt(uuid.New(), model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30))
	require.NoError(t, repo.Create(ctx, apt))

	got, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	got.Status = model.AppointmentStatusNoShow

	again, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, again.Status)
}

func TestOutbox_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	outbox := store.Outbox()

	event := &model.OutboxEvent{EventType: "notification.reminder", Payload: []byte(`{}`)}
	require.NoError(t, outbox.Create(ctx, event))

	pending, err := outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, outbox.MarkRetry(ctx, event.ID, "broker down", time.Now().Add(time.Hour)))
	pending, err = outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "retry not yet due")

	require.NoError(t, outbox.MarkProcessed(ctx, event.ID))
	n, err := outbox.DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.OutboxEvents())
}
