package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/notification"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

// Options carries the collaborators of a Service.
type Options struct {
	Appointments     repository.AppointmentRepository
	BlockedIntervals repository.BlockedIntervalRepository
	Providers        repository.ProviderRepository
	Contacts         repository.ContactRepository
	Dispatcher       notification.Dispatcher
	Clock            Clock
	Location         *time.Location
	Logger           *logger.Logger
	Metrics          *metrics.Metrics
}

// Service is the scheduling entry point used by booking, rescheduling and
// check-in flows. It keeps no state between calls.
type Service struct {
	appointments repository.AppointmentRepository
	blocked      repository.BlockedIntervalRepository
	providers    repository.ProviderRepository
	contacts     repository.ContactRepository
	detector     *Detector
	dispatcher   notification.Dispatcher
	clock        Clock
	loc          *time.Location
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{Location: loc}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appointments: opts.Appointments,
		blocked:      opts.BlockedIntervals,
		providers:    opts.Providers,
		contacts:     opts.Contacts,
		detector:     NewDetector(opts.Appointments, opts.BlockedIntervals),
		dispatcher:   opts.Dispatcher,
		clock:        clock,
		loc:          loc,
		log:          log.With("scheduling"),
		metrics:      opts.Metrics,
	}
}

// SlotListing answers "what can be booked". NonWorkingDay is a normal
// outcome, not an error.
type SlotListing struct {
	ProviderID    uuid.UUID          `json:"provider_id"`
	Date          model.Date         `json:"date"`
	NonWorkingDay bool               `json:"non_working_day"`
	Slots         []model.TimeSlot   `json:"slots"`
	Details       []SlotAvailability `json:"details,omitempty"`
}

func (s *Service) profile(ctx context.Context, providerID uuid.UUID) (*model.ProviderAvailabilityProfile, error) {
	p, err := s.providers.GetProfile(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("provider availability profile", providerID, err)
		}
		return nil, lookupError("get availability profile", err)
	}
	return p, nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, providerID uuid.UUID, date model.Date) (*SlotListing, error) {
	profile, err := s.profile(ctx, providerID)
	if err != nil {
		return nil, err
	}
	listing := &SlotListing{ProviderID: providerID, Date: date, Slots: []model.TimeSlot{}}

	slots, working, err := SlotsForDate(profile, date)
	if err != nil {
		return nil, err
	}
	if !working {
		listing.NonWorkingDay = true
		return listing, nil
	}

	verdicts, err := s.detector.Evaluate(ctx, providerID, date, slots, nil)
	if err != nil {
		return nil, err
	}
	for i := range verdicts {
		if verdicts[i].Available && s.started(date, verdicts[i].TimeSlot) {
			verdicts[i].Available = false
			verdicts[i].Reason = ReasonInPast
		}
	}
	listing.Details = verdicts
	for _, v := range verdicts {
		if v.Available {
			listing.Slots = append(listing.Slots, v.TimeSlot)
		}
	}
	return listing, nil
}

// started reports whether slot on date has already begun on the clinic clock.
func (s *Service) started(date model.Date, slot model.TimeSlot) bool {
	return !date.At(slot.Start, s.loc).After(s.clock.Now())
}

// checkSlot verifies slot is offered by the provider on date, lies in the
// future and is currently free. exclude is the appointment being moved.
func (s *Service) checkSlot(ctx context.Context, providerID uuid.UUID, date model.Date, slot model.TimeSlot, exclude *uuid.UUID) error {
	profile, err := s.profile(ctx, providerID)
	if err != nil {
		return err
	}
	unavailable := func(reason string) error {
		return &SlotUnavailableError{ProviderID: providerID, Date: date, Slot: slot, Reason: reason}
	}

	slots, working, err := SlotsForDate(profile, date)
	if err != nil {
		return err
	}
	if !working {
		return unavailable(ReasonNonWorkingDay)
	}
	if !containsSlot(slots, slot) {
		return unavailable(ReasonNotOffered)
	}
	if s.started(date, slot) {
		return unavailable(ReasonInPast)
	}

	verdicts, err := s.detector.Evaluate(ctx, providerID, date, []model.TimeSlot{slot}, exclude)
	if err != nil {
		return err
	}
	if !verdicts[0].Available {
		return unavailable(verdicts[0].Reason)
	}
	return nil
}

// BookingRequest describes a new appointment. Status is optional; when
// empty the patient kind decides it.
type BookingRequest struct {
	ProviderID    uuid.UUID
	Date          model.Date
	Slot          model.TimeSlot
	Patient       model.PatientRef
	Fee           float64
	ServiceID     *uuid.UUID
	Note          string
	Status        model.AppointmentStatus
	PaymentStatus model.PaymentStatus
}

var bookableStatuses = map[model.AppointmentStatus]bool{
	pending:   true,
	confirmed: true,
	checkedIn: true,
}

// Book validates the slot and creates the appointment. The repository
// re-checks overlap inside its write, so a lost race surfaces as
// SlotUnavailableError rather than a double booking.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	if !req.Patient.Valid() {
		return nil, apperrors.BadRequest("invalid patient reference", model.ErrInvalidPatientRef)
	}
	status := InitialStatus(req.Patient, req.Status)
	if !bookableStatuses[status] {
		return nil, apperrors.BadRequest("appointments cannot be created with status "+string(status), nil)
	}
	payment := req.PaymentStatus
	if payment == "" {
		payment = model.PaymentStatusNotPaid
	}

	if err := s.checkSlot(ctx, req.ProviderID, req.Date, req.Slot, nil); err != nil {
		s.metrics.ObserveBooking("book", resultOf(err))
		return nil, err
	}

	apt := &model.Appointment{
		Patient:       req.Patient,
		ProviderID:    req.ProviderID,
		Date:          req.Date,
		TimeFrom:      req.Slot.Start,
		TimeTo:        req.Slot.End,
		Fee:           req.Fee,
		ServiceID:     req.ServiceID,
		Note:          req.Note,
		Status:        status,
		PaymentStatus: payment,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		if errors.Is(err, repository.ErrSlotConflict) {
			err = &SlotUnavailableError{ProviderID: req.ProviderID, Date: req.Date, Slot: req.Slot, Reason: ReasonRaceLost}
		} else {
			err = lookupError("create appointment", err)
		}
		s.metrics.ObserveBooking("book", resultOf(err))
		return nil, err
	}
	s.metrics.ObserveBooking("book", "ok")
	s.log.Info("appointment booked",
		"appointment_id", apt.ID.String(), "provider_id", apt.ProviderID.String(),
		"date", apt.Date.String(), "slot", apt.Slot().String(), "status", string(apt.Status))

	if kind, ok := CreationIntent(apt.Status); ok {
		s.notifyPatient(ctx, kind, apt, notification.AppointmentData(apt))
	}
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("appointment", id, err)
		}
		return nil, lookupError("get appointment", err)
	}
	return apt, nil
}

// Reschedule moves an appointment to a new date and slot and confirms it in
// the same write.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date model.Date, slot model.TimeSlot) (*model.Appointment, error) {
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := Next(current.Status, TriggerReschedule)
	if err != nil {
		return nil, s.rejected(id, TriggerReschedule, err)
	}

	if err := s.checkSlot(ctx, current.ProviderID, date, slot, &id); err != nil {
		s.metrics.ObserveBooking("reschedule", resultOf(err))
		return nil, err
	}

	err = s.appointments.Reschedule(ctx, id, current.Status, date, slot, to)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrSlotConflict):
		err = &SlotUnavailableError{ProviderID: current.ProviderID, Date: date, Slot: slot, Reason: ReasonRaceLost}
	case errors.Is(err, repository.ErrStaleState):
		err = s.staleError(ctx, id, TriggerReschedule)
	case errors.Is(err, repository.ErrNotFound):
		err = notFound("appointment", id, err)
	default:
		err = lookupError("reschedule appointment", err)
	}
	if err != nil {
		s.metrics.ObserveBooking("reschedule", resultOf(err))
		return nil, err
	}
	s.metrics.ObserveBooking("reschedule", "ok")
	s.metrics.ObserveTransition(string(TriggerReschedule), "ok")

	after := current.Clone()
	after.Date = date
	after.TimeFrom = slot.Start
	after.TimeTo = slot.End
	after.Status = to
	after.UpdatedAt = s.clock.Now()

	s.log.Info("appointment rescheduled",
		"appointment_id", id.String(),
		"from", current.Date.String()+" "+current.Slot().String(),
		"to", date.String()+" "+slot.String())
	s.notifyPatient(ctx, model.IntentReschedule, after, notification.RescheduleData(current, after))
	return after, nil
}

// TransitionPayload carries trigger-specific input.
type TransitionPayload struct {
	CancelReason *string
	// Date and Slot are required for the reschedule trigger.
	Date *model.Date
	Slot *model.TimeSlot
}

// Transition applies trigger to the appointment, committing only if its
// status is still the one that was validated.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, trigger Trigger, payload TransitionPayload) (*model.Appointment, error) {
	if !trigger.Valid() {
		return nil, apperrors.BadRequest("unknown trigger "+string(trigger), nil)
	}
	if trigger == TriggerReschedule {
		if payload.Date == nil || payload.Slot == nil {
			return nil, apperrors.BadRequest("reschedule requires date and slot", nil)
		}
		return s.Reschedule(ctx, id, *payload.Date, *payload.Slot)
	}

	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := Next(current.Status, trigger)
	if err != nil {
		return nil, s.rejected(id, trigger, err)
	}

	var reason *string
	if trigger == TriggerCancel {
		reason = payload.CancelReason
	}
	err = s.appointments.UpdateStatus(ctx, id, current.Status, to, reason)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStaleState):
		err = s.staleError(ctx, id, trigger)
	case errors.Is(err, repository.ErrNotFound):
		err = notFound("appointment", id, err)
	default:
		err = lookupError("update appointment status", err)
	}
	if err != nil {
		s.metrics.ObserveTransition(string(trigger), resultOf(err))
		return nil, err
	}
	s.metrics.ObserveTransition(string(trigger), "ok")

	after := current.Clone()
	after.Status = to
	after.UpdatedAt = s.clock.Now()
	if reason != nil {
		after.CancelReason = reason
	}
	s.log.Info("appointment transitioned",
		"appointment_id", id.String(), "trigger", string(trigger),
		"from", string(current.Status), "to", string(to))

	// Overdue digests go to staff from the sweep, never per appointment.
	if kind, ok := IntentKindFor(trigger); ok && kind != model.IntentOverdueDigest {
		data := notification.AppointmentData(after)
		if reason != nil {
			data["cancel_reason"] = *reason
		}
		s.notifyPatient(ctx, kind, after, data)
	}
	return after, nil
}

// ConfirmTempPatientAppointments is the bulk step of converting a temp
// patient into a registered one.
func (s *Service) ConfirmTempPatientAppointments(ctx context.Context, tempPatientID uuid.UUID) (int64, error) {
	n, err := s.appointments.UpdateTempPatientStatuses(ctx, tempPatientID, SourcesFor(TriggerConvert), confirmed)
	if err != nil {
		s.metrics.ObserveTransition(string(TriggerConvert), "error")
		return 0, lookupError("confirm temp patient appointments", err)
	}
	s.metrics.ObserveTransition(string(TriggerConvert), "ok")
	s.log.Info("temp patient appointments confirmed",
		"temp_patient_id", tempPatientID.String(), "count", n)
	return n, nil
}

func (s *Service) rejected(id uuid.UUID, trigger Trigger, err error) error {
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		invalid.AppointmentID = id
	}
	s.metrics.ObserveTransition(string(trigger), "rejected")
	return err
}

// staleError explains a conditional write that lost to a concurrent one:
// if the fresh status no longer allows trigger, that is the answer.
func (s *Service) staleError(ctx context.Context, id uuid.UUID, trigger Trigger) error {
	fresh, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if _, err := Next(fresh.Status, trigger); err != nil {
		return s.rejected(id, trigger, err)
	}
	return apperrors.Conflict("appointment changed concurrently, retry", repository.ErrStaleState)
}

func (s *Service) notifyPatient(ctx context.Context, kind model.IntentKind, apt *model.Appointment, data model.JSONMap) {
	if s.dispatcher == nil {
		return
	}
	contact, err := s.contacts.PatientContact(ctx, apt.Patient)
	if err != nil {
		s.log.Error(err, "failed to resolve patient contact",
			"appointment_id", apt.ID.String(), "kind", string(kind))
		s.metrics.ObserveIntent(string(kind), "lookup_error")
		return
	}
	intent := notification.NewIntent(kind, *contact, []uuid.UUID{apt.ID}, data, s.clock.Now())
	if intent == nil {
		s.log.Debug("no contact channel for intent",
			"appointment_id", apt.ID.String(), "kind", string(kind))
		s.metrics.ObserveIntent(string(kind), "unreachable")
		return
	}
	if err := s.dispatcher.Dispatch(ctx, intent); err != nil {
		s.log.Error(err, "failed to dispatch notification intent",
			"appointment_id", apt.ID.String(), "kind", string(kind))
		s.metrics.ObserveIntent(string(kind), "error")
		return
	}
	s.metrics.ObserveIntent(string(kind), "ok")
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidTransition):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "misconfigured"
	}
	return "error"
}
