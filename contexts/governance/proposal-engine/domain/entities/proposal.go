package entities

import (
	"encoding/json"
	"time"
)

type ProposalState string

const (
	ProposalStateDraft    ProposalState = "draft"
	ProposalStateActive   ProposalState = "active"
	ProposalStatePassed   ProposalState = "passed"
	ProposalStateRejected ProposalState = "rejected"
)

// Terminal reports whether the state admits no further transitions.
func (s ProposalState) Terminal() bool {
	return s == ProposalStatePassed || s == ProposalStateRejected
}

type ProposalCategory string

const (
	ProposalCategoryPolicy     ProposalCategory = "policy"
	ProposalCategoryParameter  ProposalCategory = "parameter"
	ProposalCategoryTreasury   ProposalCategory = "treasury"
	ProposalCategoryMembership ProposalCategory = "membership"
)

func ValidProposalCategory(category ProposalCategory) bool {
	switch category {
	case ProposalCategoryPolicy,
		ProposalCategoryParameter,
		ProposalCategoryTreasury,
		ProposalCategoryMembership:
		return true
	default:
		return false
	}
}

// Tally is the cached tally snapshot persisted on the proposal at
// finalization time. Live reads recompute it from the vote ledger instead.
type Tally struct {
	ForPower      float64
	AgainstPower  float64
	AbstainPower  float64
	QuorumReached bool
}

type Proposal struct {
	ProposalID     string
	Title          string
	Description    string
	Category       ProposalCategory
	AuthorID       string
	State          ProposalState
	QuorumFraction float64
	VotingEndsAt   *time.Time
	Changes        json.RawMessage
	Tally          Tally
	ActivatedAt    *time.Time
	FinalizedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Votable reports whether a vote may be accepted at the given instant.
// A draft or terminal proposal is never votable; an active proposal stops
// being votable once its voting window end has passed.
func (p Proposal) Votable(now time.Time) bool {
	if p.State != ProposalStateActive {
		return false
	}
	return !p.VotingWindowElapsed(now)
}

func (p Proposal) VotingWindowElapsed(now time.Time) bool {
	if p.VotingEndsAt == nil {
		return false
	}
	return !now.Before(p.VotingEndsAt.UTC())
}

// HasChanges reports whether the proposal carries a structured changes
// payload for the downstream implementation hook. The payload is opaque to
// the engine beyond this emptiness check.
func (p Proposal) HasChanges() bool {
	trimmed := string(p.Changes)
	return trimmed != "" && trimmed != "null" && trimmed != "{}" && trimmed != "[]"
}
