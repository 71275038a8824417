package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"safetynet/contexts/governance/proposal-engine/application/commands"
	"safetynet/contexts/governance/proposal-engine/application/queries"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	httptransport "safetynet/contexts/governance/proposal-engine/transport/http"
)

type Handler struct {
	Proposals commands.ProposalUseCase
	Votes     commands.VoteUseCase
	Finalizer commands.FinalizeUseCase
	Status    queries.StatusUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateProposalHandler(
	ctx context.Context,
	authorID string,
	req httptransport.CreateProposalRequest,
) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.CreateProposal(ctx, commands.CreateProposalCommand{
		AuthorID:    authorID,
		Title:       req.Title,
		Description: req.Description,
		Category:    entities.ProposalCategory(req.Category),
		Changes:     req.Changes,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal), nil
}

func (h Handler) ActivateProposalHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.ActivateProposalRequest,
) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.ActivateProposal(ctx, commands.ActivateProposalCommand{
		ProposalID:     proposalID,
		QuorumFraction: req.QuorumFraction,
		VotingDays:     req.VotingDays,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	proposalID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     entities.VoteChoice(req.Choice),
		Rationale:  req.Rationale,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	resp := httptransport.VoteResponse{
		VoteID:     result.Vote.VoteID,
		ProposalID: result.Vote.ProposalID,
		VoterID:    result.Vote.VoterID,
		Choice:     string(result.Vote.Choice),
		Weight:     result.Vote.Weight,
		Rationale:  result.Vote.Rationale,
		Finalized:  result.Finalized,
	}
	if result.Finalized {
		resp.Outcome = string(result.Outcome)
	}
	return resp, nil
}

func (h Handler) ProposalStatusHandler(ctx context.Context, proposalID string) (httptransport.ProposalStatusResponse, error) {
	status, err := h.Status.ProposalStatus(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalStatusResponse{}, err
	}
	return httptransport.ProposalStatusResponse{
		Proposal:   mapProposal(status.Proposal),
		Tally:      mapTally(status.Evaluation),
		VotingOpen: status.VotingOpen,
		VoteCount:  status.VoteCount,
	}, nil
}

func (h Handler) ListProposalsHandler(ctx context.Context, state string) (httptransport.ProposalListResponse, error) {
	proposals, err := h.Status.ListProposals(ctx, entities.ProposalState(state))
	if err != nil {
		return httptransport.ProposalListResponse{}, err
	}
	items := make([]httptransport.ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, mapProposal(proposal))
	}
	return httptransport.ProposalListResponse{Items: items}, nil
}

func (h Handler) FinalizeProposalHandler(ctx context.Context, proposalID string) (httptransport.FinalizeResponse, error) {
	result, err := h.Finalizer.Finalize(ctx, proposalID)
	if err != nil {
		return httptransport.FinalizeResponse{}, err
	}
	return httptransport.FinalizeResponse{
		ProposalID: result.Proposal.ProposalID,
		State:      string(result.Proposal.State),
		Finalized:  result.Finalized,
		Applied:    result.Applied,
		Tally:      mapTally(result.Evaluation),
	}, nil
}

func mapProposal(proposal entities.Proposal) httptransport.ProposalResponse {
	resp := httptransport.ProposalResponse{
		ProposalID:     proposal.ProposalID,
		Title:          proposal.Title,
		Description:    proposal.Description,
		Category:       string(proposal.Category),
		AuthorID:       proposal.AuthorID,
		State:          string(proposal.State),
		QuorumFraction: proposal.QuorumFraction,
		CreatedAt:      proposal.CreatedAt.UTC().Format(time.RFC3339),
	}
	if proposal.VotingEndsAt != nil {
		resp.VotingEndsAt = proposal.VotingEndsAt.UTC().Format(time.RFC3339)
	}
	if proposal.FinalizedAt != nil {
		resp.FinalizedAt = proposal.FinalizedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func mapTally(evaluation entities.Evaluation) httptransport.TallyView {
	return httptransport.TallyView{
		ForPower:      evaluation.ForPower,
		AgainstPower:  evaluation.AgainstPower,
		AbstainPower:  evaluation.AbstainPower,
		CastPower:     evaluation.CastPower,
		EligiblePower: evaluation.EligiblePower,
		QuorumReached: evaluation.QuorumReached,
	}
}
