package transfers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the postgres-backed Registry. Consume-once claiming is
// a conditional UPDATE on the record's state, so concurrent matchers
// race on the database row, not on process memory.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PendingTransfer{})
}

func (r *Repository) Insert(ctx context.Context, record *PendingTransfer) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*PendingTransfer, error) {
	var record PendingTransfer
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) FindMatchingOutgoing(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	return r.findMatching(ctx, DirectionOutgoing, criteria)
}

func (r *Repository) FindMatchingIncoming(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	return r.findMatching(ctx, DirectionIncoming, criteria)
}

func (r *Repository) findMatching(ctx context.Context, direction Direction, criteria MatchCriteria) (*PendingTransfer, error) {
	var candidates []PendingTransfer
	err := r.db.WithContext(ctx).
		Where("direction = ? AND state = ? AND old_adcid = ? AND old_ptid = ?",
			direction, StateAwaitingMatch, criteria.OldIdentity.ADCID, criteria.OldIdentity.PTID).
		Order("created_at").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		if matches(&candidates[i], criteria) {
			return &candidates[i], nil
		}
	}
	return nil, ErrNoMatch
}

func (r *Repository) ClaimMatch(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&PendingTransfer{}).
		Where("id = ? AND state = ?", id, StateAwaitingMatch).
		Updates(map[string]interface{}{
			"state":      StateMatched,
			"matched_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) MarkMatched(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&PendingTransfer{}).
		Where("id = ? AND state <> ?", id, StateMatched).
		Updates(map[string]interface{}{
			"state":      StateMatched,
			"matched_at": time.Now().UTC(),
		})
	return result.Error
}

func (r *Repository) ListPending(ctx context.Context, adcid int) ([]PendingTransfer, error) {
	query := r.db.WithContext(ctx).Where("state <> ?", StateMatched)
	if adcid != 0 {
		query = query.Where("reported_by = ? OR counterpart_adcid = ?", adcid, adcid)
	}

	var records []PendingTransfer
	if err := query.Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
