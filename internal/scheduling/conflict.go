package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

// SlotAvailability is the verdict for one slot. When both an appointment and
// a blocked interval overlap, Reason is "booked"; either makes it unbookable.
type SlotAvailability struct {
	model.TimeSlot
	Available         bool       `json:"available"`
	Reason            string     `json:"reason,omitempty"`
	AppointmentID     *uuid.UUID `json:"appointment_id,omitempty"`
	BlockedIntervalID *uuid.UUID `json:"blocked_interval_id,omitempty"`
}

// Detector is read-only; it never writes and holds no state between calls.
type Detector struct {
	appointments repository.AppointmentRepository
	blocked      repository.BlockedIntervalRepository
}

func NewDetector(appointments repository.AppointmentRepository, blocked repository.BlockedIntervalRepository) *Detector {
	return &Detector{appointments: appointments, blocked: blocked}
}

// Evaluate classifies every slot, ignoring excludeID (the appointment being
// moved) when it is set.
func (d *Detector) Evaluate(ctx context.Context, providerID uuid.UUID, date model.Date, slots []model.TimeSlot, excludeID *uuid.UUID) ([]SlotAvailability, error) {
	appointments, err := d.appointments.ListActiveByProviderDate(ctx, providerID, date, excludeID)
	if err != nil {
		return nil, lookupError("list appointments", err)
	}
	blocked, err := d.blocked.ListByProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, lookupError("list blocked intervals", err)
	}

	out := make([]SlotAvailability, len(slots))
	for i, slot := range slots {
		out[i] = classify(slot, appointments, blocked)
	}
	return out, nil
}

// Available returns only the bookable slots, in input order.
func (d *Detector) Available(ctx context.Context, providerID uuid.UUID, date model.Date, slots []model.TimeSlot, excludeID *uuid.UUID) ([]model.TimeSlot, error) {
	verdicts, err := d.Evaluate(ctx, providerID, date, slots, excludeID)
	if err != nil {
		return nil, err
	}
	free := make([]model.TimeSlot, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Available {
			free = append(free, v.TimeSlot)
		}
	}
	return free, nil
}

func classify(slot model.TimeSlot, appointments []*model.Appointment, blocked []*model.BlockedInterval) SlotAvailability {
	for _, a := range appointments {
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if slot.Overlaps(a.Slot()) {
			id := a.ID
			return SlotAvailability{TimeSlot: slot, Reason: ReasonBooked, AppointmentID: &id}
		}
	}
	for _, b := range blocked {
		if slot.Overlaps(b.Slot()) {
			id := b.ID
			return SlotAvailability{TimeSlot: slot, Reason: ReasonBlocked, BlockedIntervalID: &id}
		}
	}
	return SlotAvailability{TimeSlot: slot, Available: true}
}
