package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/types"
)

type ExperienceEventRepo interface {
	// InsertIfAbsent appends the ledger row unless one already exists for
	// its SourceEventID. Returns false when the row was already present —
	// the duplicate-delivery guard.
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, ev *types.ExperienceEvent) (bool, error)
	// GetBySourceEventID returns (nil, nil) when no ledger row exists.
	GetBySourceEventID(ctx context.Context, tx *gorm.DB, sourceEventID string) (*types.ExperienceEvent, error)
	// GetByDID lists the most recent ledger rows for an actor.
	GetByDID(ctx context.Context, tx *gorm.DB, did string, limit int) ([]*types.ExperienceEvent, error)
}

type experienceEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperienceEventRepo(db *gorm.DB, baseLog *logger.Logger) ExperienceEventRepo {
	repoLog := baseLog.With("repo", "ExperienceEventRepo")
	return &experienceEventRepo{db: db, log: repoLog}
}

func (r *experienceEventRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, ev *types.ExperienceEvent) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *experienceEventRepo) GetBySourceEventID(ctx context.Context, tx *gorm.DB, sourceEventID string) (*types.ExperienceEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ExperienceEvent
	err := transaction.WithContext(ctx).
		Where("source_event_id = ?", sourceEventID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *experienceEventRepo) GetByDID(ctx context.Context, tx *gorm.DB, did string, limit int) ([]*types.ExperienceEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 50
	}

	var results []*types.ExperienceEvent
	if err := transaction.WithContext(ctx).
		Where("did = ?", did).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
