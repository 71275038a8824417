package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "safetynet/contexts/governance/proposal-engine/application"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/contexts/governance/proposal-engine/ports"
)

// FinalizeResult reports the proposal state after a finalize attempt.
// Finalized means the proposal is terminal after this call; Applied means
// this call performed the transition rather than observing a prior one.
type FinalizeResult struct {
	Proposal   entities.Proposal
	Evaluation entities.Evaluation
	Finalized  bool
	Applied    bool
}

// FinalizeUseCase owns the one-shot ACTIVE -> {PASSED|REJECTED} transition.
// Every successful vote, every late vote attempt and the deadline sweeper
// funnel through Finalize, so it must stay safe to call concurrently and
// repeatedly: the conditional repository write guarantees at most one caller
// applies the transition, and a terminal proposal short-circuits without
// re-evaluating.
type FinalizeUseCase struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
	Members   ports.MembershipDirectory
	Audit     ports.AuditSink
	Hook      ports.ImplementationHook
	Clock     ports.Clock
	Logger    *slog.Logger
}

// Finalize re-reads the proposal, re-aggregates cast power from the vote
// ledger and the eligible denominator from the membership directory, and
// finalizes when quorum is reached or the voting window has ended. A
// still-open proposal returns a normal non-terminal result, not an error.
func (uc FinalizeUseCase) Finalize(ctx context.Context, proposalID string) (FinalizeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return FinalizeResult{}, domainerrors.ErrInvalidInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if proposal.State.Terminal() {
		// Idempotent short-circuit: return the stored outcome without
		// re-evaluating, re-writing or re-invoking the hook.
		return FinalizeResult{
			Proposal:   proposal,
			Evaluation: evaluationFromTally(proposal),
			Finalized:  true,
		}, nil
	}
	if proposal.State != entities.ProposalStateActive {
		return FinalizeResult{}, domainerrors.ErrNotVotable
	}

	votes, err := uc.Votes.ListVotesByProposal(ctx, proposalID)
	if err != nil {
		return FinalizeResult{}, err
	}
	// The denominator must be fresh: membership can change between a vote
	// being cast and finalize running.
	eligible, err := uc.Members.ListEligibleVoters(ctx)
	if err != nil {
		return FinalizeResult{}, err
	}

	now := uc.now()
	evaluation := entities.Evaluate(proposal, votes, eligible, now)
	if !evaluation.CanFinalize {
		logger.Debug("proposal still open after evaluation",
			"event", "governance_finalize_still_open",
			"module", "governance/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"cast_power", evaluation.CastPower,
			"eligible_power", evaluation.EligiblePower,
		)
		return FinalizeResult{Proposal: proposal, Evaluation: evaluation}, nil
	}

	stored, applied, err := uc.Proposals.FinalizeProposal(ctx, proposalID, evaluation.Outcome, evaluation.Tally(), now)
	if err != nil {
		return FinalizeResult{}, err
	}
	if !applied {
		// A concurrent finalizer won the conditional write; its outcome is
		// authoritative and this caller performs no side effects.
		logger.Info("proposal already finalized by concurrent writer",
			"event", "governance_finalize_lost_race",
			"module", "governance/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"state", string(stored.State),
		)
		return FinalizeResult{
			Proposal:   stored,
			Evaluation: evaluationFromTally(stored),
			Finalized:  true,
		}, nil
	}

	uc.recordAudit(ctx, ports.AuditEvent{
		Type:       "proposal.finalized",
		ProposalID: proposalID,
		Payload: map[string]any{
			"outcome":        string(stored.State),
			"for_power":      evaluation.ForPower,
			"against_power":  evaluation.AgainstPower,
			"abstain_power":  evaluation.AbstainPower,
			"quorum_reached": evaluation.QuorumReached,
			"voting_ended":   evaluation.VotingEnded,
		},
	})

	if stored.State == entities.ProposalStatePassed && stored.HasChanges() && uc.Hook != nil {
		// Hook runs strictly after the terminal write commits. A hook
		// failure is logged, not retried, and never reverts the outcome.
		if err := uc.Hook.Apply(ctx, stored); err != nil {
			logger.Error("implementation hook failed",
				"event", "governance_implementation_hook_failed",
				"module", "governance/proposal-engine",
				"layer", "application",
				"proposal_id", proposalID,
				"error", err.Error(),
			)
		}
	}

	logger.Info("proposal finalized",
		"event", "governance_proposal_finalized",
		"module", "governance/proposal-engine",
		"layer", "application",
		"proposal_id", proposalID,
		"outcome", string(stored.State),
		"for_power", evaluation.ForPower,
		"against_power", evaluation.AgainstPower,
		"quorum_reached", evaluation.QuorumReached,
	)
	return FinalizeResult{
		Proposal:   stored,
		Evaluation: evaluation,
		Finalized:  true,
		Applied:    true,
	}, nil
}

func (uc FinalizeUseCase) recordAudit(ctx context.Context, event ports.AuditEvent) {
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
			"error", err.Error(),
		)
	}
}

func (uc FinalizeUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

// evaluationFromTally reconstructs a terminal proposal's evaluation from the
// frozen tally snapshot so repeat finalize calls return the stored outcome.
// Only fields captured in the snapshot are reconstructed.
func evaluationFromTally(proposal entities.Proposal) entities.Evaluation {
	tally := proposal.Tally
	return entities.Evaluation{
		ForPower:      tally.ForPower,
		AgainstPower:  tally.AgainstPower,
		AbstainPower:  tally.AbstainPower,
		CastPower:     tally.ForPower + tally.AgainstPower + tally.AbstainPower,
		QuorumReached: tally.QuorumReached,
		CanFinalize:   true,
		Outcome:       proposal.State,
	}
}
