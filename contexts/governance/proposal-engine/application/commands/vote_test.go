package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auditadapter "safetynet/contexts/governance/proposal-engine/adapters/audit"
	"safetynet/contexts/governance/proposal-engine/adapters/memory"
	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingHook struct {
	mu    sync.Mutex
	calls int
	last  entities.Proposal
}

func (h *countingHook) Apply(_ context.Context, proposal entities.Proposal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.last = proposal
	return nil
}

func (h *countingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type engineFixture struct {
	store     *memory.Store
	clock     *testClock
	hook      *countingHook
	proposals ProposalUseCase
	votes     VoteUseCase
	finalizer FinalizeUseCase
}

func newEngineFixture() *engineFixture {
	store := memory.NewStore(nil)
	clock := &testClock{now: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	hook := &countingHook{}
	sink := auditadapter.OutboxSink{Outbox: store, Clock: clock, IDGen: store}
	finalizer := FinalizeUseCase{
		Proposals: store,
		Votes:     store,
		Members:   store,
		Audit:     sink,
		Hook:      hook,
		Clock:     clock,
	}
	return &engineFixture{
		store: store,
		clock: clock,
		hook:  hook,
		proposals: ProposalUseCase{
			Proposals: store,
			Audit:     sink,
			Clock:     clock,
			IDGen:     store,
		},
		votes: VoteUseCase{
			Proposals: store,
			Votes:     store,
			Members:   store,
			Audit:     sink,
			Finalizer: finalizer,
			Clock:     clock,
			IDGen:     store,
		},
		finalizer: finalizer,
	}
}

func (f *engineFixture) activateProposal(t *testing.T, quorum float64, days int, changes string) entities.Proposal {
	t.Helper()
	ctx := context.Background()
	draft, err := f.proposals.CreateProposal(ctx, CreateProposalCommand{
		AuthorID:    "member-author",
		Title:       "Raise annual dues",
		Description: "Increase dues from 20 to 25 starting next season.",
		Category:    entities.ProposalCategoryPolicy,
		Changes:     []byte(changes),
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	active, err := f.proposals.ActivateProposal(ctx, ActivateProposalCommand{
		ProposalID:     draft.ProposalID,
		QuorumFraction: quorum,
		VotingDays:     days,
	})
	if err != nil {
		t.Fatalf("activate proposal: %v", err)
	}
	return active
}

func (f *engineFixture) seedMember(memberID string, multiplier float64) {
	f.store.SetMember(memberID, true, []entities.TokenHolding{
		{TokenID: "gov-token", WeightMultiplier: multiplier},
	})
}

func TestCastVoteLifecycle(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()
	fixture.seedMember("member-a", 3)
	fixture.seedMember("member-b", 3)
	fixture.seedMember("member-c", 4)

	// Eligible power 10, quorum 0.9: finalization needs 9 of it cast.
	proposal := fixture.activateProposal(t, 0.9, 7, `{"dues_amount":25}`)

	first, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	})
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if first.Vote.Weight != 3 {
		t.Fatalf("expected snapshotted weight 3, got %f", first.Vote.Weight)
	}
	if first.Finalized {
		t.Fatalf("3 of 10 cast must not finalize at quorum 0.9")
	}

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceAgainst,
	}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("second vote by same member: want ErrAlreadyVoted, got %v", err)
	}

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-b",
		Choice:     entities.VoteChoiceAgainst,
	}); err != nil {
		t.Fatalf("second voter: %v", err)
	}

	last, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-c",
		Choice:     entities.VoteChoiceFor,
	})
	if err != nil {
		t.Fatalf("third voter: %v", err)
	}
	if !last.Finalized || last.Outcome != entities.ProposalStatePassed {
		t.Fatalf("full quorum with 7 for vs 3 against must pass, got %+v", last)
	}

	stored, err := fixture.store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("reload proposal: %v", err)
	}
	if stored.State != entities.ProposalStatePassed {
		t.Fatalf("expected passed, got %s", stored.State)
	}
	if stored.Tally.ForPower != 7 || stored.Tally.AgainstPower != 3 || !stored.Tally.QuorumReached {
		t.Fatalf("unexpected tally snapshot: %+v", stored.Tally)
	}
	if fixture.hook.count() != 1 {
		t.Fatalf("implementation hook must run exactly once, ran %d times", fixture.hook.count())
	}

	// Terminal proposals accept no further votes, even from members who
	// never voted.
	fixture.seedMember("member-d", 1)
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-d",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrNotVotable) {
		t.Fatalf("vote on finalized proposal: want ErrNotVotable, got %v", err)
	}
}

func TestCastVotePreconditionOrder(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()
	fixture.seedMember("member-a", 1)

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: "missing",
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrProposalNotFound) {
		t.Fatalf("unknown proposal: want ErrProposalNotFound, got %v", err)
	}

	draft, err := fixture.proposals.CreateProposal(ctx, CreateProposalCommand{
		AuthorID: "member-author",
		Title:    "Still a draft",
		Category: entities.ProposalCategoryParameter,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: draft.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrNotVotable) {
		t.Fatalf("vote on draft: want ErrNotVotable, got %v", err)
	}

	active := fixture.activateProposal(t, 0.9, 7, "")
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: active.ProposalID,
		VoterID:    "stranger",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrNotEligible) {
		t.Fatalf("non-member vote: want ErrNotEligible, got %v", err)
	}

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: active.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: active.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("repeat vote: want ErrAlreadyVoted, got %v", err)
	}

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: active.ProposalID,
		VoterID:    "member-a",
		Choice:     "maybe",
	}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("invalid choice: want ErrInvalidInput, got %v", err)
	}
}

func TestCastVoteClosedWindowFinalizes(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()
	fixture.seedMember("member-a", 1)
	fixture.seedMember("member-b", 1)

	proposal := fixture.activateProposal(t, 0.9, 1, "")
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); err != nil {
		t.Fatalf("in-window vote: %v", err)
	}

	fixture.clock.Advance(25 * time.Hour)

	// The late vote must fail closed, and the attempt itself drives the
	// proposal to its terminal state. The closed-window check runs before
	// eligibility, so even a non-member sees VotingClosed here.
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "stranger",
		Choice:     entities.VoteChoiceFor,
	}); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("late vote: want ErrVotingClosed, got %v", err)
	}

	stored, err := fixture.store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("reload proposal: %v", err)
	}
	if stored.State != entities.ProposalStatePassed {
		t.Fatalf("late vote attempt must finalize the expired proposal, state is %s", stored.State)
	}
}

func TestCastVoteWeightSnapshotIsImmutable(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()
	fixture.seedMember("member-a", 2)
	fixture.seedMember("member-b", 8)

	proposal := fixture.activateProposal(t, 0.9, 7, "")
	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceFor,
	}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// A holdings change after the vote must not rewrite the recorded weight.
	fixture.seedMember("member-a", 50)

	vote, found, err := fixture.store.GetVoteByIdentity(ctx, proposal.ProposalID, "member-a")
	if err != nil || !found {
		t.Fatalf("lookup vote: found=%v err=%v", found, err)
	}
	if vote.Weight != 2 {
		t.Fatalf("vote weight must stay 2 after holdings change, got %f", vote.Weight)
	}
}

func TestCastVoteConcurrentDuplicateSingleWinner(t *testing.T) {
	fixture := newEngineFixture()
	fixture.seedMember("member-a", 1)
	for _, id := range []string{"member-b", "member-c", "member-d"} {
		fixture.seedMember(id, 1)
	}
	proposal := fixture.activateProposal(t, 0.9, 7, "")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = fixture.votes.CastVote(context.Background(), CastVoteCommand{
				ProposalID: proposal.ProposalID,
				VoterID:    "member-a",
				Choice:     entities.VoteChoiceFor,
			})
		}(i)
	}
	wg.Wait()

	var accepted, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
			duplicates++
		default:
			t.Fatalf("unexpected error from concurrent vote: %v", err)
		}
	}
	if accepted != 1 || duplicates != attempts-1 {
		t.Fatalf("expected exactly one accepted vote, got accepted=%d duplicates=%d", accepted, duplicates)
	}

	votes, err := fixture.store.ListVotesByProposal(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("vote ledger must hold exactly one vote, has %d", len(votes))
	}
}

func TestCastVoteRecordsAuditTrail(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()
	fixture.seedMember("member-a", 1)
	proposal := fixture.activateProposal(t, 0.9, 7, "")

	if _, err := fixture.votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "member-a",
		Choice:     entities.VoteChoiceAbstain,
		Rationale:  "need more detail",
	}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	pending, err := fixture.store.ListPendingOutbox(ctx, 0)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	var types []string
	for _, message := range pending {
		types = append(types, message.EventType)
	}
	want := []string{"proposal.created", "proposal.activated", "vote.cast"}
	if len(types) != len(want) {
		t.Fatalf("expected audit events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected audit events %v, got %v", want, types)
		}
	}
}
