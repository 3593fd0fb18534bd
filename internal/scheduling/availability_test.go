package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

func weekdayProfile(from, to model.TimeOfDay, minutes int) *model.ProviderAvailabilityProfile {
	return &model.ProviderAvailabilityProfile{
		ProviderID:   uuid.New(),
		WorkDayFrom:  time.Monday,
		WorkDayTo:    time.Friday,
		WorkTimeFrom: from,
		WorkTimeTo:   to,
		SlotMinutes:  minutes,
	}
}

func TestGenerateSlots_MorningShift(t *testing.T) {
	slots, err := GenerateSlots(weekdayProfile(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0), 30))
	require.NoError(t, err)
	require.Len(t, slots, 6)

	got := make([]string, len(slots))
	for i, s := range slots {
		got[i] = s.String()
	}
	assert.Equal(t, []string{
		"09:00-09:30", "09:30-10:00", "10:00-10:30",
		"10:30-11:00", "11:00-11:30", "11:30-12:00",
	}, got)
}

func TestGenerateSlots_DropsPartialTrailingSlot(t *testing.T) {
	slots, err := GenerateSlots(weekdayProfile(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 45), 30))
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, model.NewTimeOfDay(10, 30), slots[2].End)
}

func TestGenerateSlots_ContainedAndExact(t *testing.T) {
	profiles := []*model.ProviderAvailabilityProfile{
		weekdayProfile(model.NewTimeOfDay(8, 0), model.NewTimeOfDay(17, 0), 45),
		weekdayProfile(model.NewTimeOfDay(7, 15), model.NewTimeOfDay(7, 50), 10),
		weekdayProfile(model.NewTimeOfDay(0, 0), model.NewTimeOfDay(24, 0), 60),
		weekdayProfile(model.NewTimeOfDay(13, 0), model.NewTimeOfDay(13, 20), 25),
	}
	for _, p := range profiles {
		slots, err := GenerateSlots(p)
		require.NoError(t, err)
		for i, s := range slots {
			assert.GreaterOrEqual(t, s.Start, p.WorkTimeFrom)
			assert.LessOrEqual(t, s.End, p.WorkTimeTo)
			assert.Equal(t, p.SlotDuration(), s.Duration())
			if i > 0 {
				assert.Equal(t, slots[i-1].End, s.Start)
			}
		}
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *model.ProviderAvailabilityProfile)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *model.ProviderAvailabilityProfile) {}},
		{name: "zero duration", mutate: func(p *model.ProviderAvailabilityProfile) { p.SlotMinutes = 0 }, wantErr: true},
		{name: "negative duration", mutate: func(p *model.ProviderAvailabilityProfile) { p.SlotMinutes = -15 }, wantErr: true},
		{name: "start equals end", mutate: func(p *model.ProviderAvailabilityProfile) { p.WorkTimeTo = p.WorkTimeFrom }, wantErr: true},
		{name: "start after end", mutate: func(p *model.ProviderAvailabilityProfile) {
			p.WorkTimeFrom, p.WorkTimeTo = p.WorkTimeTo, p.WorkTimeFrom
		}, wantErr: true},
		{name: "bad weekday", mutate: func(p *model.ProviderAvailabilityProfile) { p.WorkDayTo = 9 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := weekdayProfile(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0), 30)
			tt.mutate(p)
			err := ValidateProfile(p)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, p.ProviderID, cfgErr.ProviderID)
			assert.ErrorIs(t, err, ErrConfiguration)

			_, genErr := GenerateSlots(p)
			assert.Error(t, genErr, "no silent empty slot list")
		})
	}
}

func TestIsWorkingDay(t *testing.T) {
	tests := []struct {
		from, to time.Weekday
		working  []time.Weekday
	}{
		{time.Monday, time.Friday, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
		{time.Friday, time.Monday, []time.Weekday{time.Friday, time.Saturday, time.Sunday, time.Monday}},
		{time.Wednesday, time.Wednesday, []time.Weekday{time.Wednesday}},
		{time.Sunday, time.Saturday, []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"-"+tt.to.String(), func(t *testing.T) {
			expected := map[time.Weekday]bool{}
			for _, d := range tt.working {
				expected[d] = true
			}
			for d := time.Sunday; d <= time.Saturday; d++ {
				assert.Equal(t, expected[d], IsWorkingDay(tt.from, tt.to, d), d.String())
			}
		})
	}
}

func TestSlotsForDate_NonWorkingDay(t *testing.T) {
	p := weekdayProfile(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0), 30)

	slots, working, err := SlotsForDate(p, model.NewDate(2024, time.March, 9)) // Saturday
	require.NoError(t, err)
	assert.False(t, working)
	assert.Empty(t, slots)

	slots, working, err = SlotsForDate(p, model.NewDate(2024, time.March, 8)) // Friday
	require.NoError(t, err)
	assert.True(t, working)
	assert.Len(t, slots, 6)
}
