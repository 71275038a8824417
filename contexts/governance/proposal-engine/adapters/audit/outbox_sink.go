package audit

import (
	"context"
	"encoding/json"
	"time"

	"safetynet/contexts/governance/proposal-engine/ports"
	"safetynet/internal/shared/events"
	"safetynet/internal/shared/outbox"
)

// OutboxSink is the audit sink adapter: every audit event becomes an
// append-only outbox row wrapped in the shared envelope, and the audit relay
// worker publishes it to the event bus asynchronously. The engine only ever
// appends; nothing in this process mutates recorded events.
type OutboxSink struct {
	Outbox ports.OutboxRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
}

func (s OutboxSink) Record(ctx context.Context, event ports.AuditEvent) error {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	payload := map[string]any{
		"proposal_id": event.ProposalID,
	}
	if event.VoterID != "" {
		payload["voter_id"] = event.VoterID
	}
	for key, value := range event.Payload {
		payload[key] = value
	}

	envelope := events.Envelope{
		EventID:        eventID,
		EventType:      event.Type,
		SourceService:  "proposal-engine",
		OccurredAtUTC:  now,
		EntityType:     "proposal",
		EntityID:       event.ProposalID,
		PayloadVersion: 1,
		Payload:        payload,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, outbox.Message{
		ID:           eventID,
		EventType:    event.Type,
		PartitionKey: event.ProposalID,
		Payload:      raw,
		Status:       outbox.StatusPending,
		CreatedAt:    now,
	})
}
