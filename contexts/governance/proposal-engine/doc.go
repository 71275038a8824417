// Package proposalengine implements the governance proposal lifecycle and
// weighted voting engine inside the governance context.
//
// The module owns the proposal state machine (draft, active, passed,
// rejected), the one-vote-per-member ledger with power snapshots, the pure
// quorum and outcome evaluator, and the one-shot finalization that multiple
// concurrent vote submissions may race to trigger. Business rules live in
// the domain and application layers; storage, audit and transport concerns
// stay behind ports and adapters.
package proposalengine
