package scheduling

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// Sentinels for errors.Is. Each typed error below matches its sentinel by
// code, so callers can test the category without a type assertion.
var (
	ErrNotFound          = apperrors.New(apperrors.ErrNotFound, "not found", nil)
	ErrSlotUnavailable   = apperrors.New(apperrors.ErrSlotUnavailable, "slot unavailable", nil)
	ErrInvalidTransition = apperrors.New(apperrors.ErrInvalidTransition, "invalid transition", nil)
	ErrConfiguration     = apperrors.New(apperrors.ErrConfiguration, "configuration error", nil)
	ErrLookup            = apperrors.New(apperrors.ErrLookup, "lookup failed", nil)
)

func codeIs(target error, code apperrors.ErrorCode) bool {
	t, ok := target.(*apperrors.AppError)
	return ok && t.Code == code
}

// ConfigurationError reports a provider profile that cannot produce slots.
type ConfigurationError struct {
	ProviderID uuid.UUID
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid availability profile for provider %s: %s", e.ProviderID, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return codeIs(target, apperrors.ErrConfiguration) }
func (e *ConfigurationError) StatusCode() int      { return http.StatusUnprocessableEntity }

// Reasons a requested slot can be refused.
const (
	ReasonBooked        = "booked"
	ReasonBlocked       = "blocked"
	ReasonNotOffered    = "not_offered"
	ReasonNonWorkingDay = "non_working_day"
	ReasonInPast        = "in_past"
	ReasonRaceLost      = "taken_concurrently"
)

// SlotUnavailableError is expected and user-recoverable: pick another slot.
type SlotUnavailableError struct {
	ProviderID uuid.UUID
	Date       model.Date
	Slot       model.TimeSlot
	Reason     string
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s on %s is unavailable for provider %s: %s", e.Slot, e.Date, e.ProviderID, e.Reason)
}

func (e *SlotUnavailableError) Is(target error) bool {
	return codeIs(target, apperrors.ErrSlotUnavailable)
}
func (e *SlotUnavailableError) StatusCode() int { return http.StatusConflict }

func (e *SlotUnavailableError) Details() map[string]interface{} {
	return map[string]interface{}{
		"provider_id": e.ProviderID,
		"date":        e.Date,
		"time_from":   e.Slot.Start,
		"time_to":     e.Slot.End,
		"reason":      e.Reason,
	}
}

// InvalidTransitionError names the source state, the rejected trigger and
// what would have been accepted. The appointment is left untouched.
type InvalidTransitionError struct {
	AppointmentID uuid.UUID
	From          model.AppointmentStatus
	Trigger       Trigger
	Allowed       []Trigger
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, t := range e.Allowed {
		allowed[i] = string(t)
	}
	return fmt.Sprintf("cannot %s appointment in status %s (allowed: %s)",
		e.Trigger, e.From, strings.Join(allowed, ", "))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return codeIs(target, apperrors.ErrInvalidTransition)
}
func (e *InvalidTransitionError) StatusCode() int { return http.StatusUnprocessableEntity }

func (e *InvalidTransitionError) Details() map[string]interface{} {
	allowed := make([]Trigger, len(e.Allowed))
	copy(allowed, e.Allowed)
	return map[string]interface{}{
		"appointment_id": e.AppointmentID,
		"from":           e.From,
		"trigger":        e.Trigger,
		"allowed":        allowed,
	}
}

func notFound(resource string, id uuid.UUID, err error) error {
	return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("%s %s not found", resource, id), err)
}

func lookupError(operation string, err error) error {
	return apperrors.Lookup(operation, err)
}
