package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "safetynet/contexts/governance/proposal-engine/application"
	"safetynet/contexts/governance/proposal-engine/ports"
	"safetynet/internal/shared/events"
)

// AuditRelay publishes appended audit envelopes to the event bus. Rows are
// marked published only after the broker publish succeeds, and the relay
// stops on the first failure so the next cycle reprocesses remaining rows.
type AuditRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r AuditRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("audit relay list failed",
			"event", "governance_audit_relay_list_failed",
			"module", "governance/proposal-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var envelope events.Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			logger.Error("audit relay decode failed",
				"event", "governance_audit_relay_decode_failed",
				"module", "governance/proposal-engine",
				"layer", "worker",
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
		topic := r.Topic
		if topic == "" {
			topic = envelope.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("audit relay publish failed",
				"event", "governance_audit_relay_publish_failed",
				"module", "governance/proposal-engine",
				"layer", "worker",
				"outbox_id", row.ID,
				"event_id", envelope.EventID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.ID, now); err != nil {
			logger.Error("audit relay mark published failed",
				"event", "governance_audit_relay_mark_failed",
				"module", "governance/proposal-engine",
				"layer", "worker",
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("audit relay cycle completed",
		"event", "governance_audit_relay_completed",
		"module", "governance/proposal-engine",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
