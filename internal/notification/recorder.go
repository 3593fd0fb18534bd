package notification

import (
	"context"
	"sync"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// Recorder is an in-memory Dispatcher. FailWhen, if set, decides per intent
// whether Dispatch returns an error instead of recording.
type Recorder struct {
	mu       sync.Mutex
	intents  []*model.NotificationIntent
	FailWhen func(*model.NotificationIntent) error
}

func (r *Recorder) Dispatch(_ context.Context, intent *model.NotificationIntent) error {
	if r.FailWhen != nil {
		if err := r.FailWhen(intent); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seen := range r.intents {
		if seen.ID == intent.ID {
			return ErrAlreadyDispatched
		}
	}
	r.intents = append(r.intents, intent)
	return nil
}

func (r *Recorder) Intents() []*model.NotificationIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.NotificationIntent(nil), r.intents...)
}

func (r *Recorder) OfKind(kind model.IntentKind) []*model.NotificationIntent {
	var out []*model.NotificationIntent
	for _, i := range r.Intents() {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = nil
}
