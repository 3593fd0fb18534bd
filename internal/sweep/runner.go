// Package sweep holds the two unattended jobs: the nightly reminder sweep
// and the overdue sweep. Both are plain functions of the instant they are
// given, so a cron tick, a test or a manual replay all drive them the same way.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/notification"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/scheduling"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const (
	sweepReminder = "reminder"
	sweepOverdue  = "overdue"

	defaultGrace       = 15 * time.Minute
	defaultReminderTTL = 36 * time.Hour
)

// reminderStatuses is every status except cancelled.
var reminderStatuses = func() []model.AppointmentStatus {
	var out []model.AppointmentStatus
	for _, s := range model.AppointmentStatuses {
		if s != model.AppointmentStatusCancelled {
			out = append(out, s)
		}
	}
	return out
}()

type Options struct {
	Appointments repository.AppointmentRepository
	Contacts     repository.ContactRepository
	Dispatcher   notification.Dispatcher
	Location     *time.Location
	// OverdueGrace is how late past time_from an appointment may be before
	// it is marked overdue.
	OverdueGrace time.Duration
	// ReminderTTL bounds how long the in-process cache remembers a sent
	// reminder. It only saves dispatcher round trips.
	ReminderTTL time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

type Runner struct {
	appointments repository.AppointmentRepository
	contacts     repository.ContactRepository
	dispatcher   notification.Dispatcher
	loc          *time.Location
	grace        time.Duration
	reminderTTL  time.Duration
	sent         *cache.Cache
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewRunner(opts Options) *Runner {
	r := &Runner{
		appointments: opts.Appointments,
		contacts:     opts.Contacts,
		dispatcher:   opts.Dispatcher,
		loc:          opts.Location,
		grace:        opts.OverdueGrace,
		reminderTTL:  opts.ReminderTTL,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.grace < 0 {
		r.grace = defaultGrace
	}
	if r.reminderTTL <= 0 {
		r.reminderTTL = defaultReminderTTL
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	r.log = r.log.With("sweep")
	r.sent = cache.New(r.reminderTTL, r.reminderTTL/2)
	return r
}

type ReminderResult struct {
	Date        model.Date `json:"date"`
	Candidates  int        `json:"candidates"`
	Sent        int        `json:"sent"`
	Duplicates  int        `json:"duplicates"`
	Unreachable int        `json:"unreachable"`
	Failed      int        `json:"failed"`
}

// RunReminderSweep emits one reminder per appointment dated the day after
// now in the clinic zone. It never changes appointment state. A reminder
// already sent for the same appointment and date is not sent again: the
// cache answers within one process, and the reminder's stable id makes the
// dispatcher refuse it across restarts.
func (r *Runner) RunReminderSweep(ctx context.Context, now time.Time) (ReminderResult, error) {
	local := now.In(r.loc)
	tomorrow := model.DateOf(local).AddDays(1)
	res := ReminderResult{Date: tomorrow}

	appointments, err := r.appointments.ListByDate(ctx, tomorrow, reminderStatuses)
	if err != nil {
		return res, apperrors.Lookup("list appointments for reminders", err)
	}
	res.Candidates = len(appointments)

	for _, apt := range appointments {
		key := fmt.Sprintf("reminder:%s:%s", apt.ID, apt.Date)
		if _, done := r.sent.Get(key); done {
			res.Duplicates++
			r.metrics.ObserveSkip(sweepReminder, "duplicate")
			continue
		}

		contact, err := r.contacts.PatientContact(ctx, apt.Patient)
		if err != nil {
			res.Failed++
			r.log.Error(err, "failed to resolve contact for reminder", "appointment_id", apt.ID.String())
			continue
		}
		intent := notification.NewIntent(model.IntentReminder, *contact, []uuid.UUID{apt.ID},
			notification.AppointmentData(apt), local)
		if intent == nil {
			res.Unreachable++
			r.metrics.ObserveSkip(sweepReminder, "unreachable")
			continue
		}
		intent.ID = notification.ReminderID(apt.ID, apt.Date)
		err = r.dispatcher.Dispatch(ctx, intent)
		if errors.Is(err, notification.ErrAlreadyDispatched) {
			r.sent.Set(key, intent.ID, cache.DefaultExpiration)
			res.Duplicates++
			r.metrics.ObserveSkip(sweepReminder, "duplicate")
			continue
		}
		if err != nil {
			res.Failed++
			r.metrics.ObserveIntent(string(model.IntentReminder), "error")
			r.log.Error(err, "failed to dispatch reminder", "appointment_id", apt.ID.String())
			continue
		}
		r.sent.Set(key, intent.ID, cache.DefaultExpiration)
		r.metrics.ObserveIntent(string(model.IntentReminder), "ok")
		res.Sent++
	}

	r.metrics.AddReminders(res.Sent)
	r.log.Info("reminder sweep finished",
		"date", tomorrow.String(), "candidates", res.Candidates, "sent", res.Sent,
		"duplicates", res.Duplicates, "unreachable", res.Unreachable, "failed", res.Failed)
	return res, nil
}

type OverdueResult struct {
	Date           model.Date      `json:"date"`
	Cutoff         model.TimeOfDay `json:"cutoff"`
	Candidates     int             `json:"candidates"`
	Marked         []uuid.UUID     `json:"marked"`
	Stale          int             `json:"stale"`
	Failed         int             `json:"failed"`
	DigestsSent    int             `json:"digests_sent"`
	DigestFailures int             `json:"digest_failures"`
}

// OverdueCutoff returns today's date in loc and the time of day before which
// an appointment start counts as late. When now - grace falls on the
// previous day the cutoff is midnight and nothing qualifies.
func OverdueCutoff(now time.Time, loc *time.Location, grace time.Duration) (model.Date, model.TimeOfDay) {
	local := now.In(loc)
	today := model.DateOf(local)
	threshold := local.Add(-grace)
	if model.DateOf(threshold) != today {
		return today, 0
	}
	return today, model.TimeOfDayOf(threshold)
}

// RunOverdueSweep marks late appointments overdue and sends one digest per
// subscribed staff member listing the appointments this run marked. Each
// write is conditional on the status read, so an appointment checked in
// meanwhile is skipped rather than overwritten. Rows already overdue are not
// candidates, so a second run right after the first marks and sends nothing.
func (r *Runner) RunOverdueSweep(ctx context.Context, now time.Time) (OverdueResult, error) {
	today, cutoff := OverdueCutoff(now, r.loc, r.grace)
	res := OverdueResult{Date: today, Cutoff: cutoff, Marked: []uuid.UUID{}}
	if cutoff == 0 {
		return res, nil
	}

	candidates, err := r.appointments.ListStartingBefore(ctx, today, cutoff,
		scheduling.SourcesFor(scheduling.TriggerOverdue))
	if err != nil {
		return res, apperrors.Lookup("list overdue candidates", err)
	}
	res.Candidates = len(candidates)

	var marked []*model.Appointment
	for _, apt := range candidates {
		to, err := scheduling.Next(apt.Status, scheduling.TriggerOverdue)
		if err != nil {
			res.Stale++
			continue
		}
		err = r.appointments.UpdateStatus(ctx, apt.ID, apt.Status, to, nil)
		switch {
		case err == nil:
			r.metrics.ObserveTransition(string(scheduling.TriggerOverdue), "ok")
			apt.Status = to
			marked = append(marked, apt)
			res.Marked = append(res.Marked, apt.ID)
		case errors.Is(err, repository.ErrStaleState), errors.Is(err, repository.ErrNotFound):
			res.Stale++
			r.metrics.ObserveSkip(sweepOverdue, "stale")
			r.log.Debug("appointment changed before overdue write, skipped", "appointment_id", apt.ID.String())
		default:
			res.Failed++
			r.metrics.ObserveTransition(string(scheduling.TriggerOverdue), "error")
			r.log.Error(err, "failed to mark appointment overdue", "appointment_id", apt.ID.String())
		}
	}
	r.metrics.AddOverdue(len(marked))

	if len(marked) == 0 {
		return res, nil
	}

	staff, err := r.contacts.OverdueDigestSubscribers(ctx)
	if err != nil {
		r.log.Error(err, "failed to load overdue digest subscribers", "marked", len(marked))
		return res, apperrors.Lookup("list overdue digest subscribers", err)
	}

	data := notification.OverdueDigestData(today, marked)
	for _, member := range staff {
		intent := notification.NewIntent(model.IntentOverdueDigest, member.Contact(), res.Marked, data, now.In(r.loc))
		if intent == nil {
			r.metrics.ObserveSkip(sweepOverdue, "unreachable")
			continue
		}
		if err := r.dispatcher.Dispatch(ctx, intent); err != nil {
			res.DigestFailures++
			r.metrics.ObserveIntent(string(model.IntentOverdueDigest), "error")
			r.log.Error(err, "failed to dispatch overdue digest", "staff_id", member.ID.String())
			continue
		}
		res.DigestsSent++
		r.metrics.ObserveIntent(string(model.IntentOverdueDigest), "ok")
	}

	r.log.Info("overdue sweep finished",
		"date", today.String(), "cutoff", cutoff.String(), "candidates", res.Candidates,
		"marked", len(res.Marked), "stale", res.Stale, "failed", res.Failed,
		"digests", res.DigestsSent, "digest_failures", res.DigestFailures)
	return res, nil
}
