package scheduling

import (
	"time"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// ValidateProfile rejects profiles that cannot yield a well-defined slot grid.
func ValidateProfile(p *model.ProviderAvailabilityProfile) error {
	fail := func(reason string) error {
		return &ConfigurationError{ProviderID: p.ProviderID, Reason: reason}
	}
	switch {
	case p.SlotMinutes <= 0:
		return fail("slot duration must be positive")
	case p.WorkTimeFrom < 0 || p.WorkTimeTo > model.MinutesPerDay:
		return fail("working time must lie within one day")
	case p.WorkTimeFrom >= p.WorkTimeTo:
		return fail("working time start must be before end")
	case !validWeekday(p.WorkDayFrom) || !validWeekday(p.WorkDayTo):
		return fail("working days must be weekdays 0-6")
	}
	return nil
}

func validWeekday(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday
}

// GenerateSlots lays fixed-length slots from the start of the working window.
// A trailing remainder shorter than one slot is dropped.
func GenerateSlots(p *model.ProviderAvailabilityProfile) ([]model.TimeSlot, error) {
	if err := ValidateProfile(p); err != nil {
		return nil, err
	}
	step := model.TimeOfDay(p.SlotMinutes)
	slots := make([]model.TimeSlot, 0, int(p.WorkTimeTo-p.WorkTimeFrom)/p.SlotMinutes)
	for start := p.WorkTimeFrom; start+step <= p.WorkTimeTo; start += step {
		slots = append(slots, model.TimeSlot{Start: start, End: start + step})
	}
	return slots, nil
}

// IsWorkingDay reports whether day lies in the inclusive range from..to,
// wrapping past Saturday when from > to (Friday..Monday is Fri, Sat, Sun, Mon).
func IsWorkingDay(from, to, day time.Weekday) bool {
	if from <= to {
		return day >= from && day <= to
	}
	return day >= from || day <= to
}

// SlotsForDate returns the slot grid for date, or working=false with no
// slots when the provider does not work that weekday.
func SlotsForDate(p *model.ProviderAvailabilityProfile, date model.Date) (slots []model.TimeSlot, working bool, err error) {
	if err := ValidateProfile(p); err != nil {
		return nil, false, err
	}
	if !IsWorkingDay(p.WorkDayFrom, p.WorkDayTo, date.Weekday()) {
		return nil, false, nil
	}
	slots, err = GenerateSlots(p)
	if err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

func containsSlot(slots []model.TimeSlot, s model.TimeSlot) bool {
	for _, candidate := range slots {
		if candidate == s {
			return true
		}
	}
	return false
}
