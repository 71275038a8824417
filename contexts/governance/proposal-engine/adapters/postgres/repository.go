package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"safetynet/contexts/governance/proposal-engine/domain/entities"
	domainerrors "safetynet/contexts/governance/proposal-engine/domain/errors"
	"safetynet/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements the proposal, vote, membership and outbox ports over
// postgres. Correctness-critical guarantees live at this layer: the unique
// index on (proposal_id, voter_id) is the double-vote barrier, and the
// finalize transition is a conditional update so concurrent finalizers can
// never both leave ACTIVE.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Migrate creates or updates the governance schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&proposalModel{},
		&voteModel{},
		&memberModel{},
		&tokenHoldingModel{},
		&outboxModel{},
	)
}

func (r *Repository) SaveProposal(ctx context.Context, proposal entities.Proposal) error {
	row := proposalModelFromEntity(proposal)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":           row.Title,
			"description":     row.Description,
			"category":        row.Category,
			"state":           row.State,
			"quorum_fraction": row.QuorumFraction,
			"voting_ends_at":  row.VotingEndsAt,
			"changes":         row.Changes,
			"activated_at":    row.ActivatedAt,
			"updated_at":      row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return r.storageError("governance_repo_save_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposal.ProposalID),
		)
	}
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, r.storageError("governance_repo_get_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListProposals(ctx context.Context, state entities.ProposalState) ([]entities.Proposal, error) {
	tx := r.db.WithContext(ctx).Model(&proposalModel{})
	if state != "" {
		tx = tx.Where("state = ?", string(state))
	}
	var rows []proposalModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.storageError("governance_repo_list_proposals_failed", err,
			"state", string(state),
		)
	}
	return toProposalEntities(rows), nil
}

func (r *Repository) ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]entities.Proposal, error) {
	var rows []proposalModel
	err := r.db.WithContext(ctx).
		Where("state = ?", string(entities.ProposalStateActive)).
		Where("voting_ends_at IS NOT NULL AND voting_ends_at <= ?", cutoff.UTC()).
		Order("voting_ends_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.storageError("governance_repo_list_expired_failed", err)
	}
	return toProposalEntities(rows), nil
}

// FinalizeProposal performs the single ACTIVE -> terminal transition.
// The state predicate in the update makes a losing concurrent writer a
// harmless no-op; the stored row is re-read and returned either way.
func (r *Repository) FinalizeProposal(
	ctx context.Context,
	proposalID string,
	outcome entities.ProposalState,
	tally entities.Tally,
	finalizedAt time.Time,
) (entities.Proposal, bool, error) {
	proposalID = strings.TrimSpace(proposalID)
	result := r.db.WithContext(ctx).
		Model(&proposalModel{}).
		Where("id = ?", proposalID).
		Where("state = ?", string(entities.ProposalStateActive)).
		Updates(map[string]any{
			"state":          string(outcome),
			"for_power":      tally.ForPower,
			"against_power":  tally.AgainstPower,
			"abstain_power":  tally.AbstainPower,
			"quorum_reached": tally.QuorumReached,
			"finalized_at":   finalizedAt.UTC(),
			"updated_at":     finalizedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Proposal{}, false, r.storageError("governance_repo_finalize_failed", result.Error,
			"proposal_id", proposalID,
			"outcome", string(outcome),
		)
	}
	stored, err := r.GetProposal(ctx, proposalID)
	if err != nil {
		return entities.Proposal{}, false, err
	}
	return stored, result.RowsAffected > 0, nil
}

func (r *Repository) CreateVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "voter_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.storageError("governance_repo_create_vote_failed", create.Error,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"proposal_id", strings.TrimSpace(vote.ProposalID),
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyVoted
	}
	return nil
}

func (r *Repository) GetVoteByIdentity(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.storageError("governance_repo_get_vote_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.storageError("governance_repo_list_votes_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) IsActiveMember(ctx context.Context, memberID string) (bool, error) {
	var row memberModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(memberID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, r.storageError("governance_repo_get_member_failed", err,
			"member_id", strings.TrimSpace(memberID),
		)
	}
	return row.Active, nil
}

func (r *Repository) GetTokenHoldings(ctx context.Context, memberID string) ([]entities.TokenHolding, error) {
	var rows []tokenHoldingModel
	err := r.db.WithContext(ctx).
		Where("member_id = ?", strings.TrimSpace(memberID)).
		Order("token_id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.storageError("governance_repo_list_holdings_failed", err,
			"member_id", strings.TrimSpace(memberID),
		)
	}
	holdings := make([]entities.TokenHolding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, entities.TokenHolding{
			TokenID:          row.TokenID,
			WeightMultiplier: row.WeightMultiplier,
		})
	}
	return holdings, nil
}

func (r *Repository) ListEligibleVoters(ctx context.Context) ([]entities.EligibleVoter, error) {
	var members []memberModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&members).
		Error
	if err != nil {
		return nil, r.storageError("governance_repo_list_members_failed", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	memberIDs := make([]string, 0, len(members))
	for _, member := range members {
		memberIDs = append(memberIDs, member.ID)
	}
	var holdings []tokenHoldingModel
	if err := r.db.WithContext(ctx).
		Where("member_id IN ?", memberIDs).
		Order("member_id ASC, token_id ASC").
		Find(&holdings).Error; err != nil {
		return nil, r.storageError("governance_repo_list_member_holdings_failed", err)
	}
	byMember := make(map[string][]entities.TokenHolding, len(members))
	for _, row := range holdings {
		byMember[row.MemberID] = append(byMember[row.MemberID], entities.TokenHolding{
			TokenID:          row.TokenID,
			WeightMultiplier: row.WeightMultiplier,
		})
	}

	voters := make([]entities.EligibleVoter, 0, len(members))
	for _, member := range members {
		voters = append(voters, entities.EligibleVoter{
			MemberID: member.ID,
			Holdings: byMember[member.ID],
		})
	}
	return voters, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, message outbox.Message) error {
	row := outboxModel{
		ID:           strings.TrimSpace(message.ID),
		EventType:    message.EventType,
		PartitionKey: message.PartitionKey,
		Payload:      append([]byte(nil), message.Payload...),
		Status:       message.Status,
		CreatedAt:    message.CreatedAt.UTC(),
	}
	if row.Status == "" {
		row.Status = outbox.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.storageError("governance_repo_append_outbox_failed", err,
			"outbox_id", row.ID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.storageError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, outbox.Message{
			ID:           row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			Status:       row.Status,
			CreatedAt:    row.CreatedAt.UTC(),
			PublishedAt:  row.PublishedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.storageError("governance_repo_mark_outbox_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStorageUnavailable
	}
	return nil
}

// storageError logs the failure and wraps it as a retryable storage error so
// callers and the HTTP layer can keep infrastructure failures distinct from
// business-rule errors.
func (r *Repository) storageError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/proposal-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return fmt.Errorf("%w: %w", domainerrors.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func toProposalEntities(rows []proposalModel) []entities.Proposal {
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}
