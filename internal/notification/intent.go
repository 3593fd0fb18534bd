// Package notification turns scheduling outcomes into notification intents
// and hands them to a dispatcher. Rendering and delivery live downstream.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// ErrAlreadyDispatched is returned for an intent whose id was dispatched
// before. Callers treat it as success.
var ErrAlreadyDispatched = errors.New("intent already dispatched")

// Dispatcher accepts intents. Implementations must not block on delivery
// and must reject an intent id they have already accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent *model.NotificationIntent) error
}

var reminderNamespace = uuid.MustParse("6f1c2a52-5c3e-4f0e-9d2b-7a4f3e1b8c90")

// ReminderID is the stable intent id of the reminder for one appointment on
// one date. Reusing it lets the outbox refuse a second reminder even after
// the worker restarts.
func ReminderID(appointmentID uuid.UUID, date model.Date) uuid.UUID {
	return uuid.NewSHA1(reminderNamespace, []byte(appointmentID.String()+"/"+date.String()))
}

// NewIntent builds an intent addressed to recipient. It returns nil when the
// recipient has no email and no phone, since nothing could deliver it.
func NewIntent(kind model.IntentKind, recipient model.Contact, appointmentIDs []uuid.UUID, data model.JSONMap, now time.Time) *model.NotificationIntent {
	channels := model.ChannelsFor(recipient)
	if len(channels) == 0 {
		return nil
	}
	if data == nil {
		data = model.JSONMap{}
	}
	return &model.NotificationIntent{
		ID:             uuid.New(),
		Kind:           kind,
		AppointmentIDs: appointmentIDs,
		Recipient:      recipient,
		Channels:       channels,
		TemplateData:   data,
		CreatedAt:      now,
	}
}

// AppointmentData is the template payload shared by appointment intents.
func AppointmentData(apt *model.Appointment) model.JSONMap {
	data := model.JSONMap{
		"appointment_id": apt.ID.String(),
		"provider_id":    apt.ProviderID.String(),
		"date":           apt.Date.String(),
		"time_from":      apt.TimeFrom.String(),
		"time_to":        apt.TimeTo.String(),
		"fee":            apt.Fee,
		"status":         string(apt.Status),
		"patient_kind":   string(apt.Patient.Kind()),
	}
	if apt.Note != "" {
		data["note"] = apt.Note
	}
	if apt.ServiceID != nil {
		data["service_id"] = apt.ServiceID.String()
	}
	return data
}

// RescheduleData carries both the old and the new date and time.
func RescheduleData(before, after *model.Appointment) model.JSONMap {
	data := AppointmentData(after)
	data["old_date"] = before.Date.String()
	data["old_time_from"] = before.TimeFrom.String()
	data["old_time_to"] = before.TimeTo.String()
	data["rescheduled"] = true
	return data
}

// OverdueDigestData lists every appointment marked overdue in one run.
func OverdueDigestData(date model.Date, overdue []*model.Appointment) model.JSONMap {
	items := make([]map[string]interface{}, 0, len(overdue))
	for _, apt := range overdue {
		items = append(items, map[string]interface{}{
			"appointment_id": apt.ID.String(),
			"provider_id":    apt.ProviderID.String(),
			"time_from":      apt.TimeFrom.String(),
			"time_to":        apt.TimeTo.String(),
			"patient":        apt.Patient.String(),
		})
	}
	return model.JSONMap{
		"date":         date.String(),
		"count":        len(overdue),
		"appointments": items,
	}
}
