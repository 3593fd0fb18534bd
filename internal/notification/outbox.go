package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

// OutboxDispatcher persists intents as outbox events. The outbox processor
// publishes them to the broker on its own schedule.
type OutboxDispatcher struct {
	outbox repository.OutboxRepository
}

func NewOutboxDispatcher(outbox repository.OutboxRepository) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: outbox}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, intent *model.NotificationIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal %s intent: %w", intent.Kind, err)
	}

	event := &model.OutboxEvent{
		ID:        intent.ID,
		EventType: intent.EventType(),
		Payload:   payload,
	}
	if err := d.outbox.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyDispatched
		}
		return fmt.Errorf("failed to enqueue %s intent: %w", intent.Kind, err)
	}
	return nil
}
