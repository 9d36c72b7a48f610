package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/feedquest-backend/internal/alignment"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/types"
)

type AlignmentRepo interface {
	// GetByDID returns (nil, nil) when no alignment row exists for the DID.
	GetByDID(ctx context.Context, tx *gorm.DB, did string) (*types.CharacterAlignment, error)
	// Upsert inserts the row or leaves an existing one in place.
	Upsert(ctx context.Context, tx *gorm.DB, al *types.CharacterAlignment) (*types.CharacterAlignment, error)
	// UpdateAxes overwrites the axis scores and the derived label.
	UpdateAxes(ctx context.Context, tx *gorm.DB, did string, axes alignment.Axes) error
}

type alignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlignmentRepo(db *gorm.DB, baseLog *logger.Logger) AlignmentRepo {
	repoLog := baseLog.With("repo", "AlignmentRepo")
	return &alignmentRepo{db: db, log: repoLog}
}

func (r *alignmentRepo) GetByDID(ctx context.Context, tx *gorm.DB, did string) (*types.CharacterAlignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.CharacterAlignment
	err := transaction.WithContext(ctx).
		Where("did = ?", did).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *alignmentRepo) Upsert(ctx context.Context, tx *gorm.DB, al *types.CharacterAlignment) (*types.CharacterAlignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if al.ID == uuid.Nil {
		al.ID = uuid.New()
	}
	if al.Label == "" {
		al.Label = alignment.Axes{}.Label()
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "did"}},
			DoNothing: true,
		}).
		Create(al).Error; err != nil {
		return nil, err
	}

	return r.GetByDID(ctx, transaction, al.DID)
}

func (r *alignmentRepo) UpdateAxes(ctx context.Context, tx *gorm.DB, did string, axes alignment.Axes) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.CharacterAlignment{}).
		Where("did = ?", did).
		Updates(map[string]interface{}{
			"good":            axes.Good,
			"moral_neutral":   axes.MoralNeutral,
			"evil":            axes.Evil,
			"lawful":          axes.Lawful,
			"ethical_neutral": axes.EthicalNeutral,
			"chaotic":         axes.Chaotic,
			"label":           axes.Label(),
		}).Error
}
