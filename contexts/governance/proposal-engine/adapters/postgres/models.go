package postgresadapter

import (
	"encoding/json"
	"time"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
)

type proposalModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	Title          string     `gorm:"column:title"`
	Description    string     `gorm:"column:description"`
	Category       string     `gorm:"column:category"`
	AuthorID       string     `gorm:"column:author_id"`
	State          string     `gorm:"column:state;index"`
	QuorumFraction float64    `gorm:"column:quorum_fraction"`
	VotingEndsAt   *time.Time `gorm:"column:voting_ends_at;index"`
	Changes        []byte     `gorm:"column:changes;type:jsonb"`
	ForPower       float64    `gorm:"column:for_power"`
	AgainstPower   float64    `gorm:"column:against_power"`
	AbstainPower   float64    `gorm:"column:abstain_power"`
	QuorumReached  bool       `gorm:"column:quorum_reached"`
	ActivatedAt    *time.Time `gorm:"column:activated_at"`
	FinalizedAt    *time.Time `gorm:"column:finalized_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (proposalModel) TableName() string {
	return "governance_proposals"
}

func proposalModelFromEntity(proposal entities.Proposal) proposalModel {
	return proposalModel{
		ID:             proposal.ProposalID,
		Title:          proposal.Title,
		Description:    proposal.Description,
		Category:       string(proposal.Category),
		AuthorID:       proposal.AuthorID,
		State:          string(proposal.State),
		QuorumFraction: proposal.QuorumFraction,
		VotingEndsAt:   proposal.VotingEndsAt,
		Changes:        []byte(proposal.Changes),
		ForPower:       proposal.Tally.ForPower,
		AgainstPower:   proposal.Tally.AgainstPower,
		AbstainPower:   proposal.Tally.AbstainPower,
		QuorumReached:  proposal.Tally.QuorumReached,
		ActivatedAt:    proposal.ActivatedAt,
		FinalizedAt:    proposal.FinalizedAt,
		CreatedAt:      proposal.CreatedAt,
		UpdatedAt:      proposal.UpdatedAt,
	}
}

func (m proposalModel) toEntity() entities.Proposal {
	return entities.Proposal{
		ProposalID:     m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Category:       entities.ProposalCategory(m.Category),
		AuthorID:       m.AuthorID,
		State:          entities.ProposalState(m.State),
		QuorumFraction: m.QuorumFraction,
		VotingEndsAt:   m.VotingEndsAt,
		Changes:        json.RawMessage(m.Changes),
		Tally: entities.Tally{
			ForPower:      m.ForPower,
			AgainstPower:  m.AgainstPower,
			AbstainPower:  m.AbstainPower,
			QuorumReached: m.QuorumReached,
		},
		ActivatedAt: m.ActivatedAt,
		FinalizedAt: m.FinalizedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ProposalID string    `gorm:"column:proposal_id;uniqueIndex:ux_governance_votes_identity"`
	VoterID    string    `gorm:"column:voter_id;uniqueIndex:ux_governance_votes_identity"`
	Choice     string    `gorm:"column:choice"`
	Weight     float64   `gorm:"column:weight"`
	Rationale  string    `gorm:"column:rationale"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "governance_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:         vote.VoteID,
		ProposalID: vote.ProposalID,
		VoterID:    vote.VoterID,
		Choice:     string(vote.Choice),
		Weight:     vote.Weight,
		Rationale:  vote.Rationale,
		CreatedAt:  vote.CreatedAt,
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:     m.ID,
		ProposalID: m.ProposalID,
		VoterID:    m.VoterID,
		Choice:     entities.VoteChoice(m.Choice),
		Weight:     m.Weight,
		Rationale:  m.Rationale,
		CreatedAt:  m.CreatedAt,
	}
}

// memberModel and tokenHoldingModel are read-only projections owned by the
// membership directory; the engine never writes them.
type memberModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Active    bool      `gorm:"column:active;index"`
	JoinedAt  time.Time `gorm:"column:joined_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (memberModel) TableName() string {
	return "members"
}

type tokenHoldingModel struct {
	ID               string  `gorm:"column:id;primaryKey"`
	MemberID         string  `gorm:"column:member_id;index"`
	TokenID          string  `gorm:"column:token_id"`
	WeightMultiplier float64 `gorm:"column:weight_multiplier"`
}

func (tokenHoldingModel) TableName() string {
	return "member_token_holdings"
}

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}
