package app

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/feedquest-backend/internal/clients/bsky"
	"github.com/yungbote/feedquest-backend/internal/clients/redis"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/services"
	"github.com/yungbote/feedquest-backend/internal/signals"
)

type Services struct {
	Progression services.ProgressionService
	Dispatcher  *services.Dispatcher
	Consumer    *firehose.Consumer
	XPCounter   redis.XPCounter
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	profileClient, err := bsky.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init profile client: %w", err)
	}

	signalClient, err := signals.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init signal client: %w", err)
	}

	// Redis is an optional mirror; the store stays authoritative without it.
	var counter redis.XPCounter
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		counter, err = redis.NewXPCounter(log)
		if err != nil {
			return Services{}, fmt.Errorf("init xp counter: %w", err)
		}
	} else {
		log.Info("REDIS_ADDR unset, XP counter mirror disabled")
	}

	progression := services.NewProgressionService(
		db, log,
		reposet.Character, reposet.Alignment, reposet.ExperienceEvent,
		profileClient, signalClient, signalClient, counter,
	)

	dispatcher := services.NewDispatcher(log, cfg.Dispatcher, progression)

	consumer, err := firehose.NewConsumer(cfg.Firehose, log)
	if err != nil {
		return Services{}, fmt.Errorf("init firehose consumer: %w", err)
	}

	return Services{
		Progression: progression,
		Dispatcher:  dispatcher,
		Consumer:    consumer,
		XPCounter:   counter,
	}, nil
}
