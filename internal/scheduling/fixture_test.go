package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/notification"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
)

var (
	monday    = model.NewDate(2024, time.March, 4)
	tuesday   = model.NewDate(2024, time.March, 5)
	wednesday = model.NewDate(2024, time.March, 6)
	saturday  = model.NewDate(2024, time.March, 9)
)

func at(h, m int) model.TimeOfDay { return model.NewTimeOfDay(h, m) }

func slot(h, m int) model.TimeSlot {
	return model.TimeSlot{Start: at(h, m), End: at(h, m).Add(30 * time.Minute)}
}

type fixture struct {
	store      *memory.Store
	recorder   *notification.Recorder
	svc        *Service
	loc        *time.Location
	providerID uuid.UUID
	patientID  uuid.UUID
}

// newFixture sets up a Mon-Fri 09:00-12:00 provider with 30 minute slots and
// a clock on the Sunday evening before the test week.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	f := &fixture{
		store:      memory.NewStore(),
		recorder:   &notification.Recorder{},
		loc:        loc,
		providerID: uuid.New(),
		patientID:  uuid.New(),
	}
	f.store.PutProfile(model.ProviderAvailabilityProfile{
		ProviderID:   f.providerID,
		WorkDayFrom:  time.Monday,
		WorkDayTo:    time.Friday,
		WorkTimeFrom: at(9, 0),
		WorkTimeTo:   at(12, 0),
		SlotMinutes:  30,
	})
	f.store.PutPatient(f.patientID, model.Contact{Name: "Asha", Email: "asha@example.com", Phone: "+910000000001"})

	f.svc = NewService(Options{
		Appointments:     f.store.Appointments(),
		BlockedIntervals: f.store.BlockedIntervals(),
		Providers:        f.store.Providers(),
		Contacts:         f.store.Contacts(),
		Dispatcher:       f.recorder,
		Clock:            FixedClock(time.Date(2024, time.March, 3, 20, 0, 0, 0, loc)),
		Location:         loc,
	})
	return f
}

func (f *fixture) book(t *testing.T, date model.Date, s model.TimeSlot) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Book(context.Background(), BookingRequest{
		ProviderID: f.providerID,
		Date:       date,
		Slot:       s,
		Patient:    model.RegularPatient(f.patientID),
		Fee:        500,
	})
	require.NoError(t, err)
	return apt
}

func (f *fixture) block(t *testing.T, date model.Date, s model.TimeSlot) *model.BlockedInterval {
	t.Helper()
	b := &model.BlockedInterval{ProviderID: f.providerID, Date: date, TimeFrom: s.Start, TimeTo: s.End, Reason: "staff meeting"}
	require.NoError(t, f.svc.CreateBlockedInterval(context.Background(), b))
	return b
}
