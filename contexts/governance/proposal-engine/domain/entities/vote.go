package entities

import "time"

type VoteChoice string

const (
	VoteChoiceFor     VoteChoice = "for"
	VoteChoiceAgainst VoteChoice = "against"
	VoteChoiceAbstain VoteChoice = "abstain"
)

func ValidVoteChoice(choice VoteChoice) bool {
	switch choice {
	case VoteChoiceFor, VoteChoiceAgainst, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

// Vote is immutable once cast. Identity is the (ProposalID, VoterID) pair;
// Weight is the voter's power snapshotted at cast time and is never
// recomputed, even if the voter's holdings change afterward.
type Vote struct {
	VoteID     string
	ProposalID string
	VoterID    string
	Choice     VoteChoice
	Weight     float64
	Rationale  string
	CreatedAt  time.Time
}
