package scheduling

import (
	"sort"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// Trigger names a lifecycle event.
type Trigger string

const (
	TriggerCheckIn    Trigger = "checkin"
	TriggerConfirm    Trigger = "confirm"
	TriggerCancel     Trigger = "cancel"
	TriggerReschedule Trigger = "reschedule"
	TriggerNoShow     Trigger = "noshow"
	TriggerOverdue    Trigger = "overdue"
	TriggerConvert    Trigger = "convert"
	TriggerComplete   Trigger = "complete"
)

type transition struct {
	from   []model.AppointmentStatus
	to     model.AppointmentStatus
	intent model.IntentKind
}

const (
	pending     = model.AppointmentStatusPending
	confirmed   = model.AppointmentStatusConfirmed
	checkedIn   = model.AppointmentStatusCheckedIn
	completed   = model.AppointmentStatusCompleted
	cancelled   = model.AppointmentStatusCancelled
	noShow      = model.AppointmentStatusNoShow
	overdue     = model.AppointmentStatusOverdue
	rescheduled = model.AppointmentStatusRescheduled
)

// transitions is the whole lifecycle. Anything not listed is rejected.
// rescheduled only appears as a source: legacy rows may still carry it, but
// a reschedule now lands on confirmed in a single write.
var transitions = map[Trigger]transition{
	TriggerCheckIn: {
		from: []model.AppointmentStatus{pending, confirmed, overdue, rescheduled},
		to:   checkedIn,
	},
	TriggerConfirm: {
		from:   []model.AppointmentStatus{pending, rescheduled},
		to:     confirmed,
		intent: model.IntentConfirmation,
	},
	TriggerCancel: {
		from:   []model.AppointmentStatus{pending, confirmed, checkedIn, noShow, overdue, rescheduled},
		to:     cancelled,
		intent: model.IntentCancellation,
	},
	TriggerReschedule: {
		from:   []model.AppointmentStatus{pending, confirmed, checkedIn, noShow, overdue, rescheduled},
		to:     confirmed,
		intent: model.IntentReschedule,
	},
	TriggerNoShow: {
		from: []model.AppointmentStatus{pending, confirmed, completed, overdue, rescheduled},
		to:   noShow,
	},
	TriggerOverdue: {
		from:   []model.AppointmentStatus{pending, confirmed, rescheduled},
		to:     overdue,
		intent: model.IntentOverdueDigest,
	},
	TriggerConvert: {
		from: []model.AppointmentStatus{pending, rescheduled},
		to:   confirmed,
	},
	TriggerComplete: {
		from: []model.AppointmentStatus{checkedIn},
		to:   completed,
	},
}

// Triggers lists every known trigger in a stable order.
func Triggers() []Trigger {
	out := make([]Trigger, 0, len(transitions))
	for t := range transitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Trigger) Valid() bool {
	_, ok := transitions[t]
	return ok
}

// Next returns the status trigger leads to from status from, or an
// InvalidTransitionError.
func Next(from model.AppointmentStatus, trigger Trigger) (model.AppointmentStatus, error) {
	tr, ok := transitions[trigger]
	if ok {
		for _, src := range tr.from {
			if src == from {
				return tr.to, nil
			}
		}
	}
	return "", &InvalidTransitionError{From: from, Trigger: trigger, Allowed: AllowedTriggers(from)}
}

// AllowedTriggers lists the triggers accepted from status, sorted.
func AllowedTriggers(status model.AppointmentStatus) []Trigger {
	var out []Trigger
	for _, t := range Triggers() {
		for _, src := range transitions[t].from {
			if src == status {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// SourcesFor lists the statuses trigger may leave from.
func SourcesFor(trigger Trigger) []model.AppointmentStatus {
	return append([]model.AppointmentStatus(nil), transitions[trigger].from...)
}

// IntentKindFor returns the notification a trigger implies, if any.
func IntentKindFor(trigger Trigger) (model.IntentKind, bool) {
	tr, ok := transitions[trigger]
	if !ok || tr.intent == "" {
		return "", false
	}
	return tr.intent, true
}

// InitialStatus decides the status of a new booking. An explicit status
// from the caller wins; otherwise temp patients start pending.
func InitialStatus(ref model.PatientRef, explicit model.AppointmentStatus) model.AppointmentStatus {
	if explicit != "" {
		return explicit
	}
	if ref.IsTemp() {
		return pending
	}
	return confirmed
}

// CreationIntent is the notification sent when a booking is created.
func CreationIntent(status model.AppointmentStatus) (model.IntentKind, bool) {
	switch status {
	case pending:
		return model.IntentPendingNotice, true
	case confirmed:
		return model.IntentConfirmation, true
	}
	return "", false
}
