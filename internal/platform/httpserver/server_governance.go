package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	governanceerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	governancehttp "safetynet/contexts/governance/proposal-engine/transport/http"
)

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{Code: code, Message: message})
}

func writeGovernanceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, governanceerrors.ErrInvalidInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotFound):
		writeGovernanceError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrNotEligible):
		writeGovernanceError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, governanceerrors.ErrNotVotable):
		writeGovernanceError(w, http.StatusConflict, "not_votable", err.Error())
	case errors.Is(err, governanceerrors.ErrVotingClosed):
		writeGovernanceError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, governanceerrors.ErrAlreadyVoted):
		writeGovernanceError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, governanceerrors.ErrStorageUnavailable):
		// Retryable and deliberately generic: storage internals stay out of
		// the response body.
		writeGovernanceError(w, http.StatusServiceUnavailable, "retry_later", "temporary storage failure, retry later")
	default:
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

// handleCreateProposal drafts a governance proposal for the calling member.
//
//	@Summary  Create proposal draft
//	@Tags     governance
//	@Router   /api/governance/v1/proposals [post]
func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	authorID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req governancehttp.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.CreateProposalHandler(r.Context(), authorID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleActivateProposal opens a draft for voting with a quorum fraction and
// voting window.
//
//	@Summary  Activate proposal
//	@Tags     governance
//	@Router   /api/governance/v1/proposals/{proposal_id}/activate [post]
func (s *Server) handleActivateProposal(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	var req governancehttp.ActivateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.ActivateProposalHandler(r.Context(), r.PathValue("proposal_id"), req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCastVote accepts one weighted vote per member per proposal.
//
//	@Summary  Cast vote
//	@Tags     governance
//	@Router   /api/governance/v1/proposals/{proposal_id}/votes [post]
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req governancehttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.CastVoteHandler(r.Context(), voterID, r.PathValue("proposal_id"), req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleProposalStatus returns the current state and a live tally, computed
// even when the proposal has not been finalized.
//
//	@Summary  Proposal status
//	@Tags     governance
//	@Router   /api/governance/v1/proposals/{proposal_id} [get]
func (s *Server) handleProposalStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ProposalStatusHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListProposals lists proposals, optionally filtered by state.
//
//	@Summary  List proposals
//	@Tags     governance
//	@Router   /api/governance/v1/proposals [get]
func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ListProposalsHandler(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFinalizeProposal runs an administrative finalize check. The call is
// idempotent; an open proposal reports finalized=false without error.
//
//	@Summary  Finalize proposal
//	@Tags     governance
//	@Router   /api/governance/v1/proposals/{proposal_id}/finalize [post]
func (s *Server) handleFinalizeProposal(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	resp, err := s.governance.Handler.FinalizeProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
