package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	auditadapter "safetynet/contexts/governance/proposal-engine/adapters/audit"
	"safetynet/contexts/governance/proposal-engine/adapters/memory"
	"safetynet/contexts/governance/proposal-engine/ports"
	"safetynet/internal/shared/events"
)

type capturingPublisher struct {
	published []events.Envelope
	topics    []string
	failAfter int
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, envelope events.Envelope) error {
	if p.failAfter > 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, envelope)
	p.topics = append(p.topics, topic)
	return nil
}

func appendAuditEvents(t *testing.T, store *memory.Store, clock fixedClock, count int) {
	t.Helper()
	sink := auditadapter.OutboxSink{Outbox: store, Clock: clock, IDGen: store}
	for i := 0; i < count; i++ {
		if err := sink.Record(context.Background(), ports.AuditEvent{
			Type:       "vote.cast",
			ProposalID: "prop-1",
			VoterID:    "member-a",
			Payload:    map[string]any{"slot": i},
		}); err != nil {
			t.Fatalf("record audit event: %v", err)
		}
	}
}

func TestAuditRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)}
	appendAuditEvents(t, store, clock, 3)

	publisher := &capturingPublisher{}
	relay := AuditRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     clock,
		Topic:     "governance.audit",
		BatchSize: 10,
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(publisher.published) != 3 {
		t.Fatalf("expected 3 published envelopes, got %d", len(publisher.published))
	}
	for _, topic := range publisher.topics {
		if topic != "governance.audit" {
			t.Fatalf("expected configured topic, got %q", topic)
		}
	}
	for _, envelope := range publisher.published {
		if envelope.EventType != "vote.cast" || envelope.EntityID != "prop-1" {
			t.Fatalf("unexpected envelope: %+v", envelope)
		}
	}

	pending, err := store.ListPendingOutbox(context.Background(), 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published rows must leave the pending set, %d remain", len(pending))
	}
}

func TestAuditRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)}
	appendAuditEvents(t, store, clock, 3)

	publisher := &capturingPublisher{failAfter: 1}
	relay := AuditRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     clock,
		Topic:     "governance.audit",
	}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("broker failure must surface as an error")
	}

	// The first row is delivered and marked; the rest stay pending for the
	// next cycle.
	pending, err := store.ListPendingOutbox(context.Background(), 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 rows pending after partial cycle, got %d", len(pending))
	}

	publisher.failAfter = 0
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if len(publisher.published) != 3 {
		t.Fatalf("retry must deliver the remaining rows, published %d", len(publisher.published))
	}
	pending, _ = store.ListPendingOutbox(context.Background(), 0)
	if len(pending) != 0 {
		t.Fatalf("all rows must be published after retry, %d remain", len(pending))
	}
}
