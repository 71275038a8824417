package entities

import "time"

// Evaluation is the outcome of one pass of the quorum and outcome rules over
// a proposal's current vote set. It carries everything finalization needs,
// and is equally safe to compute speculatively for read-only status views.
type Evaluation struct {
	ForPower      float64
	AgainstPower  float64
	AbstainPower  float64
	CastPower     float64
	EligiblePower float64
	QuorumReached bool
	VotingEnded   bool
	CanFinalize   bool
	Outcome       ProposalState
}

// Tally converts the evaluation into the snapshot persisted on a finalized
// proposal.
func (e Evaluation) Tally() Tally {
	return Tally{
		ForPower:      e.ForPower,
		AgainstPower:  e.AgainstPower,
		AbstainPower:  e.AbstainPower,
		QuorumReached: e.QuorumReached,
	}
}

// Evaluate applies the quorum and outcome rules. Pure and stateless: callers
// supply a fresh vote set and a freshly recomputed eligible voter set so the
// result never depends on request-scoped caches.
//
// Quorum counts every cast vote's weight, abstentions included. The outcome
// comparison uses for/against power only; a tie resolves to rejected because
// the default is no change. Quorum and window expiry are equivalent OR
// triggers.
func Evaluate(proposal Proposal, votes []Vote, eligible []EligibleVoter, now time.Time) Evaluation {
	result := Evaluation{
		EligiblePower: TotalEligiblePower(eligible),
	}
	for _, vote := range votes {
		switch vote.Choice {
		case VoteChoiceFor:
			result.ForPower += vote.Weight
		case VoteChoiceAgainst:
			result.AgainstPower += vote.Weight
		case VoteChoiceAbstain:
			result.AbstainPower += vote.Weight
		}
	}
	result.CastPower = result.ForPower + result.AgainstPower + result.AbstainPower
	result.QuorumReached = result.CastPower >= result.EligiblePower*proposal.QuorumFraction
	result.VotingEnded = proposal.VotingWindowElapsed(now)
	result.CanFinalize = result.QuorumReached || result.VotingEnded
	if result.ForPower > result.AgainstPower {
		result.Outcome = ProposalStatePassed
	} else {
		result.Outcome = ProposalStateRejected
	}
	return result
}
