package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checkedin"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "noshow"
	AppointmentStatusOverdue   AppointmentStatus = "overdue"
	// AppointmentStatusRescheduled is only ever read from legacy rows.
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCheckedIn,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
	AppointmentStatusOverdue,
	AppointmentStatusRescheduled,
}

func (s AppointmentStatus) Valid() bool {
	for _, st := range AppointmentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusNotPaid PaymentStatus = "not-paid"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Appointment struct {
	Base
	Patient       PatientRef        `json:"patient"`
	ProviderID    uuid.UUID         `json:"provider_id"`
	Date          Date              `json:"date"`
	TimeFrom      TimeOfDay         `json:"time_from"`
	TimeTo        TimeOfDay         `json:"time_to"`
	Fee           float64           `json:"fee"`
	ServiceID     *uuid.UUID        `json:"service_id,omitempty"`
	Note          string            `json:"note,omitempty"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	CancelReason  *string           `json:"cancel_reason,omitempty"`
}

func (a *Appointment) Slot() TimeSlot {
	return TimeSlot{Start: a.TimeFrom, End: a.TimeTo}
}

// Clone returns a copy safe to mutate without touching the original.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	if a.ServiceID != nil {
		id := *a.ServiceID
		cp.ServiceID = &id
	}
	if a.CancelReason != nil {
		r := *a.CancelReason
		cp.CancelReason = &r
	}
	return &cp
}
