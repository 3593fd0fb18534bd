package model

import (
	"time"

	"github.com/google/uuid"
)

// ProviderAvailabilityProfile is a provider's weekly working pattern. The
// weekday range is inclusive and may wrap (Friday..Monday).
type ProviderAvailabilityProfile struct {
	ProviderID   uuid.UUID    `db:"provider_id" json:"provider_id"`
	WorkDayFrom  time.Weekday `db:"work_day_from" json:"work_day_from"`
	WorkDayTo    time.Weekday `db:"work_day_to" json:"work_day_to"`
	WorkTimeFrom TimeOfDay    `db:"work_time_from" json:"work_time_from"`
	WorkTimeTo   TimeOfDay    `db:"work_time_to" json:"work_time_to"`
	SlotMinutes  int          `db:"slot_minutes" json:"slot_minutes"`
}

func (p *ProviderAvailabilityProfile) SlotDuration() time.Duration {
	return time.Duration(p.SlotMinutes) * time.Minute
}

// BlockedInterval marks a provider unavailable for a window on one date.
type BlockedInterval struct {
	Base
	ProviderID uuid.UUID  `db:"provider_id" json:"provider_id"`
	Date       Date       `db:"date" json:"date"`
	TimeFrom   TimeOfDay  `db:"time_from" json:"time_from"`
	TimeTo     TimeOfDay  `db:"time_to" json:"time_to"`
	Reason     string     `db:"reason" json:"reason,omitempty"`
	CreatedBy  *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
}

func (b *BlockedInterval) Slot() TimeSlot {
	return TimeSlot{Start: b.TimeFrom, End: b.TimeTo}
}

// StaffMember is a clinic employee who can subscribe to overdue digests.
type StaffMember struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Name  string    `db:"name" json:"name"`
	Email string    `db:"email" json:"email"`
	Phone string    `db:"phone" json:"phone"`
}

func (s *StaffMember) Contact() Contact {
	return Contact{Name: s.Name, Email: s.Email, Phone: s.Phone}
}
