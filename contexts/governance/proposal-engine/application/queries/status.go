package queries

import (
	"context"
	"strings"
	"time"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/contexts/governance/proposal-engine/ports"
)

// ProposalStatusResult is the read model for a single proposal: its current
// state plus a live tally, computed speculatively even when the proposal has
// not been finalized.
type ProposalStatusResult struct {
	Proposal   entities.Proposal
	Evaluation entities.Evaluation
	VotingOpen bool
	VoteCount  int
}

// StatusUseCase serves read-only proposal views. It shares the pure
// evaluator with finalization but never writes, so it is safe to call from
// any status endpoint at any frequency.
type StatusUseCase struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
	Members   ports.MembershipDirectory
	Clock     ports.Clock
}

func (uc StatusUseCase) ProposalStatus(ctx context.Context, proposalID string) (ProposalStatusResult, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return ProposalStatusResult{}, domainerrors.ErrInvalidInput
	}
	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return ProposalStatusResult{}, err
	}

	votes, err := uc.Votes.ListVotesByProposal(ctx, proposalID)
	if err != nil {
		return ProposalStatusResult{}, err
	}

	now := uc.now()
	if proposal.State.Terminal() {
		// Terminal tallies are frozen; report the stored snapshot instead of
		// re-deriving anything.
		tally := proposal.Tally
		return ProposalStatusResult{
			Proposal: proposal,
			Evaluation: entities.Evaluation{
				ForPower:      tally.ForPower,
				AgainstPower:  tally.AgainstPower,
				AbstainPower:  tally.AbstainPower,
				CastPower:     tally.ForPower + tally.AgainstPower + tally.AbstainPower,
				QuorumReached: tally.QuorumReached,
				CanFinalize:   true,
				Outcome:       proposal.State,
			},
			VoteCount: len(votes),
		}, nil
	}

	eligible, err := uc.Members.ListEligibleVoters(ctx)
	if err != nil {
		return ProposalStatusResult{}, err
	}
	return ProposalStatusResult{
		Proposal:   proposal,
		Evaluation: entities.Evaluate(proposal, votes, eligible, now),
		VotingOpen: proposal.Votable(now),
		VoteCount:  len(votes),
	}, nil
}

// ListProposals returns proposals filtered by state, or every proposal when
// the state filter is empty.
func (uc StatusUseCase) ListProposals(ctx context.Context, state entities.ProposalState) ([]entities.Proposal, error) {
	if state != "" {
		switch state {
		case entities.ProposalStateDraft,
			entities.ProposalStateActive,
			entities.ProposalStatePassed,
			entities.ProposalStateRejected:
		default:
			return nil, domainerrors.ErrInvalidInput
		}
	}
	return uc.Proposals.ListProposals(ctx, state)
}

func (uc StatusUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
