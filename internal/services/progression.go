package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/feedquest-backend/internal/alignment"
	"github.com/yungbote/feedquest-backend/internal/clients/bsky"
	"github.com/yungbote/feedquest-backend/internal/clients/redis"
	"github.com/yungbote/feedquest-backend/internal/events"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/leveling"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/repos"
	"github.com/yungbote/feedquest-backend/internal/signals"
	"github.com/yungbote/feedquest-backend/internal/types"
)

// errDuplicate aborts the persist transaction when the ledger row already
// exists; the event was processed before and must not credit XP again.
var errDuplicate = errors.New("source event already processed")

// CreateResult is the caller-observable acknowledgement for one applied
// create event.
type CreateResult struct {
	Kind      events.Kind
	GainedXP  int
	State     leveling.LevelState
	LeveledUp bool
	Duplicate bool
}

// ProgressionService owns the sequential business steps for one actor:
// resolve-or-bootstrap, XP computation, alignment scoring, and the atomic
// persist. Callers are responsible for serializing calls per actor; the
// Dispatcher does that for stream events.
type ProgressionService interface {
	// ResolveOrCreate loads the character for a DID, bootstrapping it from
	// the profile service on first sight.
	ResolveOrCreate(ctx context.Context, did string) (*types.Character, error)
	// GetAlignment returns the actor's alignment row, if any.
	GetAlignment(ctx context.Context, did string) (*types.CharacterAlignment, error)
	// ApplyCreate runs the full create-event sequence for a classified event.
	ApplyCreate(ctx context.Context, ev *firehose.Event, c events.Classified) (CreateResult, error)
	// ApplyDelete compensates a previously credited event.
	ApplyDelete(ctx context.Context, ev *firehose.Event) error
}

type progressionService struct {
	db         *gorm.DB
	log        *logger.Logger
	characters repos.CharacterRepo
	alignments repos.AlignmentRepo
	ledger     repos.ExperienceEventRepo
	profiles   bsky.ProfileProvider
	sentiment  signals.SentimentProvider
	spellcheck signals.SpellcheckProvider
	counter    redis.XPCounter // optional mirror; nil disables
}

func NewProgressionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	characters repos.CharacterRepo,
	alignments repos.AlignmentRepo,
	ledger repos.ExperienceEventRepo,
	profiles bsky.ProfileProvider,
	sentiment signals.SentimentProvider,
	spellcheck signals.SpellcheckProvider,
	counter redis.XPCounter,
) ProgressionService {
	return &progressionService{
		db:         db,
		log:        baseLog.With("service", "ProgressionService"),
		characters: characters,
		alignments: alignments,
		ledger:     ledger,
		profiles:   profiles,
		sentiment:  sentiment,
		spellcheck: spellcheck,
		counter:    counter,
	}
}

func (s *progressionService) ResolveOrCreate(ctx context.Context, did string) (*types.Character, error) {
	ch, err := s.characters.GetByDID(ctx, nil, did)
	if err != nil {
		return nil, fmt.Errorf("load character %s: %w", did, err)
	}
	if ch != nil {
		return ch, nil
	}
	return s.bootstrap(ctx, did)
}

// bootstrap seeds a new character from the profile service. Both writes are
// insert-or-keep, so a concurrent bootstrap for the same DID cannot
// double-seed; whichever row lands first wins and is re-read.
func (s *progressionService) bootstrap(ctx context.Context, did string) (*types.Character, error) {
	profile, err := s.profiles.GetProfile(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", did, err)
	}

	seed := leveling.ApplyExperienceDelta(0, profile.SeedExperience)
	s.log.Info("Bootstrapping character",
		"did", did,
		"name", profile.DisplayName,
		"seed_experience", seed.Experience,
	)

	ch := &types.Character{
		DID:                   did,
		Name:                  profile.DisplayName,
		Level:                 seed.Level,
		Experience:            seed.Experience,
		ExperienceToNextLevel: seed.ExperienceToNextLevel,
		LevelsGained:          0,
		ProgressPercentage:    seed.ProgressPercentage,
	}
	stored, err := s.characters.Upsert(ctx, nil, ch)
	if err != nil {
		return nil, fmt.Errorf("seed character %s: %w", did, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("seed character %s: row missing after upsert", did)
	}

	if _, err := s.alignments.Upsert(ctx, nil, &types.CharacterAlignment{DID: did}); err != nil {
		return nil, fmt.Errorf("seed alignment %s: %w", did, err)
	}

	if s.counter != nil {
		if _, found, err := s.counter.Get(ctx, did); err != nil {
			s.log.Warn("XP counter unavailable during bootstrap", "did", did, "error", err)
		} else if !found {
			if err := s.counter.Set(ctx, did, int64(stored.Experience)); err != nil {
				s.log.Warn("Failed to seed XP counter", "did", did, "error", err)
			}
		}
	}

	return stored, nil
}

func (s *progressionService) GetAlignment(ctx context.Context, did string) (*types.CharacterAlignment, error) {
	return s.alignments.GetByDID(ctx, nil, did)
}

func (s *progressionService) ApplyCreate(ctx context.Context, ev *firehose.Event, c events.Classified) (CreateResult, error) {
	ch, err := s.ResolveOrCreate(ctx, ev.DID)
	if err != nil {
		return CreateResult{}, err
	}

	delta := events.CalculateXP(c)
	newState := leveling.ApplyExperienceDelta(ch.Experience, delta)

	// Alignment only moves on authored text; signal failures skip the
	// enrichment but never block the XP award.
	var axes *alignment.Axes
	if c.Kind == events.KindPost && c.Text != "" {
		axes = s.scoreAlignment(ctx, ev.DID, c.Text)
	}

	entry := &types.ExperienceEvent{
		DID:           ev.DID,
		EventKind:     string(c.Kind),
		SourceEventID: ev.SourceEventID(),
		RawContext:    rawContext(ev, c),
		XPAwarded:     delta,
		OccurredAt:    ev.Time(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.characters.UpdateProgression(ctx, tx, ev.DID, newState); err != nil {
			return fmt.Errorf("persist progression: %w", err)
		}
		if axes != nil {
			if err := s.alignments.UpdateAxes(ctx, tx, ev.DID, *axes); err != nil {
				return fmt.Errorf("persist alignment: %w", err)
			}
		}
		inserted, err := s.ledger.InsertIfAbsent(ctx, tx, entry)
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		if !inserted {
			return errDuplicate
		}
		return nil
	})
	if errors.Is(err, errDuplicate) {
		s.log.Debug("Duplicate delivery ignored", "did", ev.DID, "source_event_id", entry.SourceEventID)
		return CreateResult{Kind: c.Kind, Duplicate: true}, nil
	}
	if err != nil {
		return CreateResult{}, err
	}

	if s.counter != nil {
		if _, err := s.counter.IncrBy(ctx, ev.DID, int64(delta)); err != nil {
			s.log.Warn("Failed to mirror XP counter", "did", ev.DID, "error", err)
		}
	}

	return CreateResult{
		Kind:      c.Kind,
		GainedXP:  delta,
		State:     newState,
		LeveledUp: newState.LevelsGained > 0,
	}, nil
}

// scoreAlignment folds the text signals into the actor's stored axes and
// returns the updated values, or nil when nothing could be scored.
func (s *progressionService) scoreAlignment(ctx context.Context, did, text string) *alignment.Axes {
	row, err := s.alignments.GetByDID(ctx, nil, did)
	if err != nil {
		s.log.Warn("Failed to load alignment, skipping update", "did", did, "error", err)
		return nil
	}
	axes := alignment.Axes{}
	if row != nil {
		axes = alignment.Axes{
			Good:           row.Good,
			MoralNeutral:   row.MoralNeutral,
			Evil:           row.Evil,
			Lawful:         row.Lawful,
			EthicalNeutral: row.EthicalNeutral,
			Chaotic:        row.Chaotic,
		}
	}

	scored := false
	if s.sentiment != nil {
		if sent, err := s.sentiment.Analyze(ctx, text); err != nil {
			s.log.Warn("Sentiment provider failed, skipping moral axis", "did", did, "error", err)
		} else {
			axes.ApplySentiment(sent)
			scored = true
		}
	}
	if s.spellcheck != nil {
		if mistakes, err := s.spellcheck.Check(ctx, text); err != nil {
			s.log.Warn("Spellcheck provider failed, skipping ethical axis", "did", did, "error", err)
		} else {
			axes.ApplySpelling(mistakes)
			scored = true
		}
	}
	if !scored {
		return nil
	}
	return &axes
}

func rawContext(ev *firehose.Event, c events.Classified) datatypes.JSONMap {
	ctx := datatypes.JSONMap{
		"collection": ev.Commit.Collection,
		"rkey":       ev.Commit.RKey,
	}
	if c.Kind == events.KindPost {
		ctx["text_length"] = len(c.Text)
		ctx["has_image"] = c.HasImage
		ctx["image_has_alt_text"] = c.ImageHasAltText
	}
	return ctx
}
