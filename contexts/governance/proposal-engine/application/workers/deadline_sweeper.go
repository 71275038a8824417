package workers

import (
	"context"
	"log/slog"
	"time"

	application "safetynet/contexts/governance/proposal-engine/application"
	"safetynet/contexts/governance/proposal-engine/application/commands"
	"safetynet/contexts/governance/proposal-engine/ports"
)

// DeadlineSweeper finalizes active proposals whose voting window elapsed
// without a vote submission to trigger the transition. Each proposal goes
// through the same idempotent Finalize path as vote-triggered finalization,
// so a sweep racing a deciding vote is harmless.
type DeadlineSweeper struct {
	Proposals ports.ProposalRepository
	Finalizer commands.FinalizeUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

// RunOnce sweeps a single batch. Failures on one proposal are logged and do
// not stop the sweep for the rest.
func (s DeadlineSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	expired, err := s.Proposals.ListActiveEndingBefore(ctx, now)
	if err != nil {
		logger.Error("deadline sweep list failed",
			"event", "governance_deadline_sweep_list_failed",
			"module", "governance/proposal-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	finalized := 0
	for _, proposal := range expired {
		result, err := s.Finalizer.Finalize(ctx, proposal.ProposalID)
		if err != nil {
			logger.Error("deadline sweep finalize failed",
				"event", "governance_deadline_sweep_finalize_failed",
				"module", "governance/proposal-engine",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
				"error", err.Error(),
			)
			continue
		}
		if result.Applied {
			finalized++
		}
	}

	logger.Info("deadline sweep completed",
		"event", "governance_deadline_sweep_completed",
		"module", "governance/proposal-engine",
		"layer", "worker",
		"expired_count", len(expired),
		"finalized_count", finalized,
	)
	return nil
}
