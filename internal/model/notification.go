package model

import (
	"time"

	"github.com/google/uuid"
)

type IntentKind string

const (
	IntentConfirmation  IntentKind = "confirmation"
	IntentPendingNotice IntentKind = "pending_notice"
	IntentCancellation  IntentKind = "cancellation"
	IntentReschedule    IntentKind = "reschedule"
	IntentOverdueDigest IntentKind = "overdue_digest"
	IntentReminder      IntentKind = "reminder"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// NotificationIntent is a request to notify someone. Templating and
// delivery happen downstream of the outbox.
type NotificationIntent struct {
	ID             uuid.UUID   `json:"id"`
	Kind           IntentKind  `json:"kind"`
	AppointmentIDs []uuid.UUID `json:"appointment_ids"`
	Recipient      Contact     `json:"recipient"`
	Channels       []Channel   `json:"channels"`
	TemplateData   JSONMap     `json:"template_data"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ChannelsFor lists the channels a contact can be reached on.
func ChannelsFor(c Contact) []Channel {
	var channels []Channel
	if c.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if c.Phone != "" {
		channels = append(channels, ChannelWhatsApp)
	}
	return channels
}

func (i *NotificationIntent) EventType() string {
	return "notification." + string(i.Kind)
}
