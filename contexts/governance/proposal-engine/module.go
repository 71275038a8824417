package proposalengine

import (
	"log/slog"

	"safetynet/contexts/governance/proposal-engine/adapters/audit"
	httpadapter "safetynet/contexts/governance/proposal-engine/adapters/http"
	"safetynet/contexts/governance/proposal-engine/adapters/memory"
	"safetynet/contexts/governance/proposal-engine/application/commands"
	"safetynet/contexts/governance/proposal-engine/application/queries"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	"safetynet/contexts/governance/proposal-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Finalizer commands.FinalizeUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
	Members   ports.MembershipDirectory
	Audit     ports.AuditSink
	Hook      ports.ImplementationHook
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	finalizer := commands.FinalizeUseCase{
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
		Members:   deps.Members,
		Audit:     deps.Audit,
		Hook:      deps.Hook,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	proposalUseCase := commands.ProposalUseCase{
		Proposals: deps.Proposals,
		Audit:     deps.Audit,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
		Members:   deps.Members,
		Audit:     deps.Audit,
		Finalizer: finalizer,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	statusUseCase := queries.StatusUseCase{
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
		Members:   deps.Members,
		Clock:     deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Proposals: proposalUseCase,
			Votes:     voteUseCase,
			Finalizer: finalizer,
			Status:    statusUseCase,
			Logger:    deps.Logger,
		},
		Finalizer: finalizer,
	}
}

// NewInMemoryModule wires the module over the memory store, with the audit
// sink writing to the store's outbox. Used by tests and local runs.
func NewInMemoryModule(seed []entities.Proposal, hook ports.ImplementationHook, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Proposals: store,
		Votes:     store,
		Members:   store,
		Audit: audit.OutboxSink{
			Outbox: store,
			Clock:  store,
			IDGen:  store,
		},
		Hook:   hook,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
