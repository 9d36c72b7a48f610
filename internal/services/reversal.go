package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/feedquest-backend/internal/events"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/leveling"
	"github.com/yungbote/feedquest-backend/internal/types"
)

// ApplyDelete reverses the XP credited for a previously processed event.
// Alignment is never reversed: axis contributions from deleted posts are
// permanent.
func (s *progressionService) ApplyDelete(ctx context.Context, ev *firehose.Event) error {
	sourceEventID := ev.SourceEventID()

	entry, err := s.ledger.GetBySourceEventID(ctx, nil, sourceEventID)
	if err != nil {
		return fmt.Errorf("lookup ledger %s: %w", sourceEventID, err)
	}

	kind := events.KindForCollection(ev.Commit.Collection)

	if entry == nil {
		// Never credited. A zero-XP placeholder marks the id consumed so a
		// late-arriving create for it cannot double-credit.
		placeholder := &types.ExperienceEvent{
			DID:           ev.DID,
			EventKind:     string(kind),
			SourceEventID: sourceEventID,
			XPAwarded:     0,
			OccurredAt:    ev.Time(),
		}
		if _, err := s.ledger.InsertIfAbsent(ctx, nil, placeholder); err != nil {
			return fmt.Errorf("insert placeholder %s: %w", sourceEventID, err)
		}
		s.log.Debug("Delete for untracked event, placeholder recorded",
			"did", ev.DID, "source_event_id", sourceEventID)
		return nil
	}

	lost := entry.XPAwarded
	if lost == 0 {
		// Ledger rows written before XP tracking carry no award; fall back
		// to the historical flat values.
		switch events.Kind(entry.EventKind) {
		case events.KindLike:
			lost = events.DeleteFallbackLikeXP
		case events.KindRepost:
			lost = events.DeleteFallbackRepostXP
		}
	}
	if lost == 0 {
		return nil
	}

	ch, err := s.ResolveOrCreate(ctx, ev.DID)
	if err != nil {
		return err
	}

	// Experience floors at 1, never 0.
	newTotal := ch.Experience - lost
	if newTotal < 1 {
		newTotal = 1
	}
	newState := leveling.ApplyExperienceDelta(newTotal, 0)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.characters.UpdateProgression(ctx, tx, ev.DID, newState)
	})
	if err != nil {
		return fmt.Errorf("persist reversal %s: %w", sourceEventID, err)
	}

	if s.counter != nil {
		if err := s.counter.Set(ctx, ev.DID, int64(newTotal)); err != nil {
			s.log.Warn("Failed to sync XP counter after reversal", "did", ev.DID, "error", err)
		}
	}

	s.log.Info("Reversed experience",
		"did", ev.DID,
		"kind", entry.EventKind,
		"lost_xp", lost,
		"experience", newState.Experience,
	)
	return nil
}
