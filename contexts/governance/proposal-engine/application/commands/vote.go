package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "safetynet/contexts/governance/proposal-engine/application"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/contexts/governance/proposal-engine/ports"
)

// CastVoteCommand is the write-model input for vote submission.
type CastVoteCommand struct {
	ProposalID string
	VoterID    string
	Choice     entities.VoteChoice
	Rationale  string
}

// CastVoteResult returns the created vote plus the finalization state the
// vote's own finalize check observed.
type CastVoteResult struct {
	Vote      entities.Vote
	Finalized bool
	Outcome   entities.ProposalState
}

// VoteUseCase accepts at most one vote per eligible member per proposal.
// Precondition order is fixed: proposal exists, proposal votable, voter
// eligible, voter has not voted. The (proposal_id, voter_id) uniqueness
// constraint in the vote repository is the correctness mechanism against
// double voting; the in-process lookup only gives earlier, cheaper failures.
type VoteUseCase struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
	Members   ports.MembershipDirectory
	Audit     ports.AuditSink
	Finalizer FinalizeUseCase
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVote snapshots the voter's current power, durably records the vote and
// then runs the finalize check: every successful vote is a finalize trigger
// point. A submission against an elapsed window triggers finalize as a side
// effect before returning ErrVotingClosed.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if proposalID == "" || voterID == "" || !entities.ValidVoteChoice(cmd.Choice) {
		logger.Warn("vote cast validation failed",
			"event", "governance_vote_cast_validation_failed",
			"module", "governance/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"choice", string(cmd.Choice),
		)
		return CastVoteResult{}, domainerrors.ErrInvalidInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if proposal.State != entities.ProposalStateActive {
		return CastVoteResult{}, domainerrors.ErrNotVotable
	}

	now := uc.now()
	if proposal.VotingWindowElapsed(now) {
		// An edge submission uncovered a proposal that should already be
		// terminal. Finalize it now, then reject the vote.
		if _, err := uc.Finalizer.Finalize(ctx, proposalID); err != nil {
			logger.Error("finalize after closed-window vote failed",
				"event", "governance_vote_cast_late_finalize_failed",
				"module", "governance/proposal-engine",
				"layer", "application",
				"proposal_id", proposalID,
				"voter_id", voterID,
				"error", err.Error(),
			)
		}
		return CastVoteResult{}, domainerrors.ErrVotingClosed
	}

	active, err := uc.Members.IsActiveMember(ctx, voterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !active {
		return CastVoteResult{}, domainerrors.ErrNotEligible
	}

	if _, found, err := uc.Votes.GetVoteByIdentity(ctx, proposalID, voterID); err != nil {
		return CastVoteResult{}, err
	} else if found {
		return CastVoteResult{}, domainerrors.ErrAlreadyVoted
	}

	holdings, err := uc.Members.GetTokenHoldings(ctx, voterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	weight := entities.VotingPower(holdings)

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	vote := entities.Vote{
		VoteID:     voteID,
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     cmd.Choice,
		Weight:     weight,
		Rationale:  strings.TrimSpace(cmd.Rationale),
		CreatedAt:  now,
	}
	if err := uc.Votes.CreateVote(ctx, vote); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) {
			// A concurrent submission from the same voter won the unique
			// constraint; first vote wins, this one fails cleanly.
			return CastVoteResult{}, domainerrors.ErrAlreadyVoted
		}
		return CastVoteResult{}, err
	}

	uc.recordAudit(ctx, ports.AuditEvent{
		Type:       "vote.cast",
		ProposalID: proposalID,
		VoterID:    voterID,
		Payload: map[string]any{
			"vote_id": vote.VoteID,
			"choice":  string(vote.Choice),
			"weight":  vote.Weight,
		},
	})

	logger.Info("vote cast",
		"event", "governance_vote_cast",
		"module", "governance/proposal-engine",
		"layer", "application",
		"vote_id", vote.VoteID,
		"proposal_id", proposalID,
		"voter_id", voterID,
		"choice", string(vote.Choice),
		"weight", vote.Weight,
	)

	result := CastVoteResult{Vote: vote}
	// The vote is durable at this point; a finalize failure must not turn a
	// recorded vote into a reported failure.
	finalize, err := uc.Finalizer.Finalize(ctx, proposalID)
	if err != nil {
		logger.Error("finalize check after vote failed",
			"event", "governance_vote_cast_finalize_failed",
			"module", "governance/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return result, nil
	}
	if finalize.Finalized {
		result.Finalized = true
		result.Outcome = finalize.Proposal.State
	}
	return result, nil
}

func (uc VoteUseCase) recordAudit(ctx context.Context, event ports.AuditEvent) {
	if uc.Audit == nil {
		return
	}
	if err := uc.Audit.Record(ctx, event); err != nil {
		application.ResolveLogger(uc.Logger).Warn("audit record failed",
			"event", "governance_audit_record_failed",
			"module", "governance/proposal-engine",
			"layer", "application",
			"audit_type", event.Type,
			"proposal_id", event.ProposalID,
			"voter_id", event.VoterID,
			"error", err.Error(),
		)
	}
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
