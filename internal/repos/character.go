package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/feedquest-backend/internal/leveling"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/types"
)

type CharacterRepo interface {
	// GetByDID returns (nil, nil) when no character exists for the DID.
	GetByDID(ctx context.Context, tx *gorm.DB, did string) (*types.Character, error)
	// Upsert inserts the character or leaves an existing row in place,
	// returning the stored row either way. Safe under concurrent bootstrap.
	Upsert(ctx context.Context, tx *gorm.DB, ch *types.Character) (*types.Character, error)
	// UpdateProgression overwrites the derived progression fields.
	UpdateProgression(ctx context.Context, tx *gorm.DB, did string, state leveling.LevelState) error
}

type characterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	repoLog := baseLog.With("repo", "CharacterRepo")
	return &characterRepo{db: db, log: repoLog}
}

func (r *characterRepo) GetByDID(ctx context.Context, tx *gorm.DB, did string) (*types.Character, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Character
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

func (r *characterRepo) Upsert(ctx context.Context, tx *gorm.DB, ch *types.Character) (*types.Character, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "did"}},
			DoNothing: true,
		}).
		Create(ch).Error; err != nil {
		return nil, err
	}

	// Re-read so a concurrent bootstrap's row wins consistently.
	return r.GetByDID(ctx, transaction, ch.DID)
}

func (r *characterRepo) UpdateProgression(ctx context.Context, tx *gorm.DB, did string, state leveling.LevelState) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Character{}).
		Where("did = ?", did).
		Updates(map[string]interface{}{
			"level":                    state.Level,
			"experience":               state.Experience,
			"experience_to_next_level": state.ExperienceToNextLevel,
			"levels_gained":            state.LevelsGained,
			"progress_percentage":      state.ProgressPercentage,
		}).Error
}
