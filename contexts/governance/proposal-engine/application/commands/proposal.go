package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "safetynet/contexts/governance/proposal-engine/application"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/contexts/governance/proposal-engine/ports"
)

// CreateProposalCommand drafts a new governance proposal.
type CreateProposalCommand struct {
	AuthorID    string
	Title       string
	Description string
	Category    entities.ProposalCategory
	Changes     json.RawMessage
}

// ActivateProposalCommand opens a draft for voting. Quorum fraction and
// voting window become immutable once applied.
type ActivateProposalCommand struct {
	ProposalID     string
	QuorumFraction float64
	VotingDays     int
}

// ProposalUseCase owns the draft and activation writes. Once a proposal is
// active, only FinalizeUseCase mutates its lifecycle fields.
type ProposalUseCase struct {
	Proposals ports.ProposalRepository
	Audit     ports.AuditSink
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc ProposalUseCase) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	authorID := strings.TrimSpace(cmd.AuthorID)
	title := strings.TrimSpace(cmd.Title)
	if authorID == "" || title == "" || !entities.ValidProposalCategory(cmd.Category) {
		logger.Warn("proposal create validation failed",
			"event", "governance_proposal_create_validation_failed",
			"module", "governance/proposal-engine",
			"layer", "application",
			"author_id", authorID,
			"category", string(cmd.Category),
		)
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}

	proposalID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Proposal{}, err
	}
	now := uc.now()
	proposal := entities.Proposal{
		ProposalID:  proposalID,
		Title:       title,
		Description: strings.TrimSpace(cmd.Description),
		Category:    cmd.Category,
		AuthorID:    authorID,
		State:       entities.ProposalStateDraft,
		Changes:     cmd.Changes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return entities.Proposal{}, err
	}

	uc.recordAudit(ctx, ports.AuditEvent{
		Type:       "proposal.created",
		ProposalID: proposalID,
		VoterID:    authorID,
		Payload: map[string]any{
			"title":    title,
			"category": string(cmd.Category),
		},
	})
	logger.Info("proposal drafted",
		"event", "governance_proposal_created",
		"module", "governance/proposal-engine",
		"layer", "application",
		"proposal_id", proposalID,
		"author_id", authorID,
		"category", string(cmd.Category),
	)
	return proposal, nil
}

// ActivateProposal performs the DRAFT -> ACTIVE transition. The quorum
// fraction must lie in (0,1] and the voting window is a positive whole
// number of days; anything else is invalid input.
func (uc ProposalUseCase) ActivateProposal(ctx context.Context, cmd ActivateProposalCommand) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	if proposalID == "" || cmd.QuorumFraction <= 0 || cmd.QuorumFraction > 1 || cmd.VotingDays <= 0 {
		logger.Warn("proposal activation validation failed",
			"event", "governance_proposal_activate_validation_failed",
			"module", "governance/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"quorum_fraction", cmd.QuorumFraction,
			"voting_days", cmd.VotingDays,
		)
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	if proposal.State != entities.ProposalStateDraft {
		return entities.Proposal{}, domainerrors.ErrNotVotable
	}

	now := uc.now()
	endsAt := now.Add(time.Duration(cmd.VotingDays) * 24 * time.Hour)
	proposal.State = entities.ProposalStateActive
	proposal.QuorumFraction = cmd.QuorumFraction
	proposal.VotingEndsAt = &endsAt
	proposal.ActivatedAt = &now
	proposal.UpdatedAt = now
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return entities.Proposal{}, err
	}

	uc.recordAudit(ctx, ports.AuditEvent{
		Type:       "proposal.activated",
		ProposalID: proposalID,
		Payload: map[string]any{
			"quorum_fraction": cmd.QuorumFraction,
			"voting_days":     cmd.VotingDays,
			"voting_ends_at":  endsAt.Format(time.RFC3339),
		},
	})
	logger.Info("proposal activated",
		"event", "governance_proposal_activated",
		"module", "governance/proposal-engine",
		"layer", "application",
		"proposal_id", proposalID,
		"quorum_fraction", cmd.QuorumFraction,
		"voting_ends_at", endsAt.Format(time.RFC3339),
	)
	return proposal, nil
}

func (uc ProposalUseCase) recordAudit(ctx context.Context, event ports.AuditEvent) {
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

func (uc ProposalUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
