package ports

import (
	"context"
	"time"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
	"safetynet/internal/shared/events"
	"safetynet/internal/shared/outbox"
)

// ProposalRepository owns proposal persistence. Lifecycle fields are only
// mutated through SaveProposal (draft/activation writes) and
// FinalizeProposal (the single conditional ACTIVE -> terminal transition).
type ProposalRepository interface {
	SaveProposal(ctx context.Context, proposal entities.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	ListProposals(ctx context.Context, state entities.ProposalState) ([]entities.Proposal, error)
	// ListActiveEndingBefore returns active proposals whose voting window
	// ended at or before the cutoff, for the deadline sweeper.
	ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]entities.Proposal, error)
	// FinalizeProposal transitions the proposal to the given terminal state
	// only if it is still active, persisting outcome, tally snapshot and
	// finalization timestamp in one conditional write. The returned flag is
	// false when a concurrent finalizer already won; the stored proposal is
	// returned either way.
	FinalizeProposal(
		ctx context.Context,
		proposalID string,
		outcome entities.ProposalState,
		tally entities.Tally,
		finalizedAt time.Time,
	) (entities.Proposal, bool, error)
}

// VoteRepository owns vote creation. CreateVote must enforce the
// (proposal_id, voter_id) uniqueness at the storage layer and surface a
// duplicate as domain errors.ErrAlreadyVoted; concurrent submissions from
// the same voter can race past any in-process check.
type VoteRepository interface {
	CreateVote(ctx context.Context, vote entities.Vote) error
	GetVoteByIdentity(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error)
	ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error)
}

// MembershipDirectory resolves membership status and governance-weight
// holdings. The engine consumes it read-only and recomputes the eligible
// voter set at every evaluation rather than caching it.
type MembershipDirectory interface {
	IsActiveMember(ctx context.Context, memberID string) (bool, error)
	GetTokenHoldings(ctx context.Context, memberID string) ([]entities.TokenHolding, error)
	ListEligibleVoters(ctx context.Context) ([]entities.EligibleVoter, error)
}

// AuditEvent is one append-only record of a vote or state transition.
type AuditEvent struct {
	Type       string
	ProposalID string
	VoterID    string
	Payload    map[string]any
}

// AuditSink consumes audit events fire-and-forget: a sink failure is logged
// by the caller and never aborts the operation that produced the event.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// ImplementationHook applies a passed proposal's changes payload downstream.
// Invoked at most once per proposal, only after the terminal state write
// commits; failures are logged, not retried, and never revert the outcome.
type ImplementationHook interface {
	Apply(ctx context.Context, proposal entities.Proposal) error
}

// OutboxRepository stores audit envelopes for asynchronous relay.
type OutboxRepository interface {
	AppendOutbox(ctx context.Context, message outbox.Message) error
	ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher delivers relayed envelopes to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
