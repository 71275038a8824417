package hooks

import (
	"context"
	"log/slog"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
)

// LoggingHook is the default implementation hook. Production wiring replaces
// it with the treasury/parameter appliers; this adapter just records that a
// passed proposal's changes payload was handed downstream.
type LoggingHook struct {
	Logger *slog.Logger
}

func (h LoggingHook) Apply(_ context.Context, proposal entities.Proposal) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("proposal changes handed to implementation",
		"event", "governance_changes_applied",
		"module", "governance/proposal-engine",
		"layer", "adapter",
		"proposal_id", proposal.ProposalID,
		"category", string(proposal.Category),
	)
	return nil
}
