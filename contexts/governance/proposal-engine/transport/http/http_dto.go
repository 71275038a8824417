package http

import "encoding/json"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateProposalRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Changes     json.RawMessage `json:"changes,omitempty"`
}

type ActivateProposalRequest struct {
	QuorumFraction float64 `json:"quorum_fraction"`
	VotingDays     int     `json:"voting_days"`
}

type CastVoteRequest struct {
	Choice    string `json:"choice"`
	Rationale string `json:"rationale,omitempty"`
}

type ProposalResponse struct {
	ProposalID     string  `json:"proposal_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category"`
	AuthorID       string  `json:"author_id"`
	State          string  `json:"state"`
	QuorumFraction float64 `json:"quorum_fraction,omitempty"`
	VotingEndsAt   string  `json:"voting_ends_at,omitempty"`
	FinalizedAt    string  `json:"finalized_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type VoteResponse struct {
	VoteID     string  `json:"vote_id"`
	ProposalID string  `json:"proposal_id"`
	VoterID    string  `json:"voter_id"`
	Choice     string  `json:"choice"`
	Weight     float64 `json:"weight"`
	Rationale  string  `json:"rationale,omitempty"`
	Finalized  bool    `json:"finalized"`
	Outcome    string  `json:"outcome,omitempty"`
}

type TallyView struct {
	ForPower      float64 `json:"for_power"`
	AgainstPower  float64 `json:"against_power"`
	AbstainPower  float64 `json:"abstain_power"`
	CastPower     float64 `json:"cast_power"`
	EligiblePower float64 `json:"eligible_power"`
	QuorumReached bool    `json:"quorum_reached"`
}

type ProposalStatusResponse struct {
	Proposal   ProposalResponse `json:"proposal"`
	Tally      TallyView        `json:"tally"`
	VotingOpen bool             `json:"voting_open"`
	VoteCount  int              `json:"vote_count"`
}

type ProposalListResponse struct {
	Items []ProposalResponse `json:"items"`
}

type FinalizeResponse struct {
	ProposalID string    `json:"proposal_id"`
	State      string    `json:"state"`
	Finalized  bool      `json:"finalized"`
	Applied    bool      `json:"applied"`
	Tally      TallyView `json:"tally"`
}
