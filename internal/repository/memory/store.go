// Package memory is an in-process implementation of the repository
// interfaces. A single mutex serialises every write, which gives the same
// check-then-insert atomicity the Postgres store gets from its transaction
// and exclusion constraint.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*model.Appointment
	blocked      map[uuid.UUID]*model.BlockedInterval
	profiles     map[uuid.UUID]*model.ProviderAvailabilityProfile
	patients     map[uuid.UUID]model.Contact
	tempPatients map[uuid.UUID]model.Contact
	staff        []*model.StaffMember
	outbox       map[uuid.UUID]*model.OutboxEvent
	outboxOrder  []uuid.UUID
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]*model.Appointment),
		blocked:      make(map[uuid.UUID]*model.BlockedInterval),
		profiles:     make(map[uuid.UUID]*model.ProviderAvailabilityProfile),
		patients:     make(map[uuid.UUID]model.Contact),
		tempPatients: make(map[uuid.UUID]model.Contact),
		outbox:       make(map[uuid.UUID]*model.OutboxEvent),
		now:          time.Now,
	}
}

// SetClock replaces the time source used for timestamps and retry due-ness.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }

func (s *Store) BlockedIntervals() repository.BlockedIntervalRepository { return blockedRepo{s} }

func (s *Store) Providers() repository.ProviderRepository { return providerRepo{s} }

func (s *Store) Contacts() repository.ContactRepository { return contactRepo{s} }

func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

func (s *Store) PutProfile(p model.ProviderAvailabilityProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ProviderID] = &p
}

func (s *Store) PutPatient(id uuid.UUID, c model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[id] = c
}

func (s *Store) PutTempPatient(id uuid.UUID, c model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempPatients[id] = c
}

func (s *Store) PutStaff(m model.StaffMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff = append(s.staff, &m)
}

// OutboxEvents returns a snapshot of every stored event, oldest first.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.OutboxEvent, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		cp := *s.outbox[id]
		out = append(out, &cp)
	}
	return out
}

// conflictLocked reports whether slot on date overlaps a live appointment
// (other than exclude) or a blocked interval. Callers hold s.mu.
func (s *Store) conflictLocked(providerID uuid.UUID, date model.Date, slot model.TimeSlot, exclude uuid.UUID) bool {
	for _, a := range s.appointments {
		if a.ID == exclude || a.ProviderID != providerID || a.Date != date {
			continue
		}
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if a.Slot().Overlaps(slot) {
			return true
		}
	}
	for _, b := range s.blocked {
		if b.ProviderID == providerID && b.Date == date && b.Slot().Overlaps(slot) {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.AppointmentStatus, st model.AppointmentStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func sortAppointments(list []*model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].TimeFrom != list[j].TimeFrom {
			return list[i].TimeFrom < list[j].TimeFrom
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	if !apt.Patient.Valid() {
		return model.ErrInvalidPatientRef
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictLocked(apt.ProviderID, apt.Date, apt.Slot(), uuid.Nil) {
		return repository.ErrSlotConflict
	}
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := s.now().UTC()
	apt.CreatedAt = now
	apt.UpdatedAt = now
	s.appointments[apt.ID] = apt.Clone()
	return nil
}

func (r appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r appointmentRepo) ListActiveByProviderDate(_ context.Context, providerID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.ProviderID != providerID || a.Date != date || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		out = append(out, a.Clone())
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) ListByDate(_ context.Context, date model.Date, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.Date == date && containsStatus(statuses, a.Status) {
			out = append(out, a.Clone())
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) ListStartingBefore(_ context.Context, date model.Date, cutoff model.TimeOfDay, statuses []model.AppointmentStatus) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.Date == date && a.TimeFrom < cutoff && containsStatus(statuses, a.Status) {
			out = append(out, a.Clone())
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus, cancelReason *string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStaleState
	}
	a.Status = to
	if cancelReason != nil {
		reason := *cancelReason
		a.CancelReason = &reason
	}
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (r appointmentRepo) Reschedule(_ context.Context, id uuid.UUID, from model.AppointmentStatus, date model.Date, slot model.TimeSlot, to model.AppointmentStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStaleState
	}
	if s.conflictLocked(a.ProviderID, date, slot, id) {
		return repository.ErrSlotConflict
	}
	a.Date = date
	a.TimeFrom = slot.Start
	a.TimeTo = slot.End
	a.Status = to
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (r appointmentRepo) UpdateTempPatientStatuses(_ context.Context, tempPatientID uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := s.now().UTC()
	for _, a := range s.appointments {
		if !a.Patient.IsTemp() || a.Patient.ID() != tempPatientID || !containsStatus(from, a.Status) {
			continue
		}
		a.Status = to
		a.UpdatedAt = now
		n++
	}
	return n, nil
}

type blockedRepo struct{ s *Store }

func (r blockedRepo) Create(_ context.Context, b *model.BlockedInterval) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = s.now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.blocked[b.ID] = &cp
	return nil
}

func (r blockedRepo) Get(_ context.Context, id uuid.UUID) (*model.BlockedInterval, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.blocked[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r blockedRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.blocked[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.blocked, id)
	return nil
}

func (r blockedRepo) ListByProviderDate(_ context.Context, providerID uuid.UUID, date model.Date) ([]*model.BlockedInterval, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.BlockedInterval
	for _, b := range r.s.blocked {
		if b.ProviderID == providerID && b.Date == date {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeFrom < out[j].TimeFrom })
	return out, nil
}

type providerRepo struct{ s *Store }

func (r providerRepo) GetProfile(_ context.Context, providerID uuid.UUID) (*model.ProviderAvailabilityProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[providerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type contactRepo struct{ s *Store }

func (r contactRepo) PatientContact(_ context.Context, ref model.PatientRef) (*model.Contact, error) {
	if !ref.Valid() {
		return nil, model.ErrInvalidPatientRef
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	book := r.s.patients
	if ref.IsTemp() {
		book = r.s.tempPatients
	}
	c, ok := book[ref.ID()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r contactRepo) OverdueDigestSubscribers(_ context.Context) ([]*model.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.StaffMember, 0, len(r.s.staff))
	for _, m := range r.s.staff {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, exists := s.outbox[event.ID]; exists {
		return repository.ErrDuplicate
	}
	event.CreatedAt = s.now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	cp := *event
	s.outbox[event.ID] = &cp
	s.outboxOrder = append(s.outboxOrder, event.ID)
	return nil
}

func (r outboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []*model.OutboxEvent
	for _, id := range s.outboxOrder {
		e := s.outbox[id]
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r outboxRepo) update(id uuid.UUID, fn func(e *model.OutboxEvent, now time.Time)) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := s.now().UTC()
	fn(e, now)
	e.UpdatedAt = now
	return nil
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent, _ time.Time) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errorMessage
		e.RetryCount++
		e.RetryAt = &retryAt
	})
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	return r.update(id, func(e *model.OutboxEvent, _ time.Time) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errorMessage
		e.RetryCount++
	})
}

func (r outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.outboxOrder[:0]
	for _, id := range s.outboxOrder {
		e := s.outbox[id]
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.outbox, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.outboxOrder = kept
	return n, nil
}
