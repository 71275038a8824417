package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/internal/shared/outbox"

	"github.com/google/uuid"
)

type memberRecord struct {
	active   bool
	holdings []entities.TokenHolding
}

// Store is the in-memory adapter used by tests and local wiring. It provides
// the same guarantees as the postgres adapter: the vote identity index plays
// the role of the storage uniqueness constraint, and FinalizeProposal is a
// serialized compare-and-set on the proposal state.
type Store struct {
	mu sync.RWMutex

	proposals map[string]entities.Proposal
	votes     map[string]entities.Vote
	voteIndex map[string]string
	members   map[string]memberRecord
	outbox    []outbox.Message
}

func NewStore(seed []entities.Proposal) *Store {
	proposals := make(map[string]entities.Proposal, len(seed))
	for _, proposal := range seed {
		proposals[proposal.ProposalID] = proposal
	}
	return &Store{
		proposals: proposals,
		votes:     make(map[string]entities.Vote),
		voteIndex: make(map[string]string),
		members:   make(map[string]memberRecord),
	}
}

// SetMember seeds membership status and holdings for a member.
func (s *Store) SetMember(memberID string, active bool, holdings []entities.TokenHolding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.TrimSpace(memberID)] = memberRecord{
		active:   active,
		holdings: append([]entities.TokenHolding(nil), holdings...),
	}
}

func (s *Store) SaveProposal(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[strings.TrimSpace(proposal.ProposalID)] = proposal
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *Store) ListProposals(_ context.Context, state entities.ProposalState) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0, len(s.proposals))
	for _, proposal := range s.proposals {
		if state != "" && proposal.State != state {
			continue
		}
		items = append(items, proposal)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListActiveEndingBefore(_ context.Context, cutoff time.Time) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Proposal
	for _, proposal := range s.proposals {
		if proposal.State != entities.ProposalStateActive || proposal.VotingEndsAt == nil {
			continue
		}
		if !cutoff.Before(proposal.VotingEndsAt.UTC()) {
			items = append(items, proposal)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VotingEndsAt.Before(*items[j].VotingEndsAt)
	})
	return items, nil
}

func (s *Store) FinalizeProposal(
	_ context.Context,
	proposalID string,
	outcome entities.ProposalState,
	tally entities.Tally,
	finalizedAt time.Time,
) (entities.Proposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, false, domainerrors.ErrProposalNotFound
	}
	if proposal.State != entities.ProposalStateActive {
		return proposal, false, nil
	}
	finalizedAt = finalizedAt.UTC()
	proposal.State = outcome
	proposal.Tally = tally
	proposal.FinalizedAt = &finalizedAt
	proposal.UpdatedAt = finalizedAt
	s.proposals[proposal.ProposalID] = proposal
	return proposal, true, nil
}

func (s *Store) CreateVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey(vote.ProposalID, vote.VoterID)
	if _, exists := s.voteIndex[key]; exists {
		return domainerrors.ErrAlreadyVoted
	}
	s.voteIndex[key] = vote.VoteID
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) GetVoteByIdentity(_ context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voteID, ok := s.voteIndex[voteKey(proposalID, voterID)]
	if !ok {
		return entities.Vote{}, false, nil
	}
	return s.votes[voteID], true, nil
}

func (s *Store) ListVotesByProposal(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposalID = strings.TrimSpace(proposalID)
	var items []entities.Vote
	for _, vote := range s.votes {
		if vote.ProposalID == proposalID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) IsActiveMember(_ context.Context, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.members[strings.TrimSpace(memberID)]
	return ok && record.active, nil
}

func (s *Store) GetTokenHoldings(_ context.Context, memberID string) ([]entities.TokenHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.members[strings.TrimSpace(memberID)]
	if !ok {
		return nil, nil
	}
	return append([]entities.TokenHolding(nil), record.holdings...), nil
}

func (s *Store) ListEligibleVoters(_ context.Context) ([]entities.EligibleVoter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var voters []entities.EligibleVoter
	for memberID, record := range s.members {
		if !record.active {
			continue
		}
		voters = append(voters, entities.EligibleVoter{
			MemberID: memberID,
			Holdings: append([]entities.TokenHolding(nil), record.holdings...),
		})
	}
	sort.Slice(voters, func(i, j int) bool {
		return voters[i].MemberID < voters[j].MemberID
	})
	return voters, nil
}

func (s *Store) AppendOutbox(_ context.Context, message outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, message)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []outbox.Message
	for _, message := range s.outbox {
		if message.Status != outbox.StatusPending {
			continue
		}
		items = append(items, message)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID != outboxID {
			continue
		}
		publishedAt = publishedAt.UTC()
		s.outbox[i].Status = outbox.StatusPublished
		s.outbox[i].PublishedAt = &publishedAt
		return nil
	}
	return domainerrors.ErrStorageUnavailable
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func voteKey(proposalID string, voterID string) string {
	return strings.TrimSpace(proposalID) + "\x00" + strings.TrimSpace(voterID)
}
