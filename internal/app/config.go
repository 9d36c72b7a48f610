package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/feedquest-backend/internal/events"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/services"
	"github.com/yungbote/feedquest-backend/internal/utils"
)

type Config struct {
	Port       string
	Firehose   firehose.Config
	Dispatcher services.DispatcherConfig
}

// LoadConfig reads the environment, then overlays the optional YAML watch
// file (FIREHOSE_CONFIG_PATH) on the firehose subscription so deployments
// can pin collections, DIDs, and a resume cursor without new env plumbing.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port: utils.GetEnv("PORT", "8080", log),
		Firehose: firehose.Config{
			Endpoint: utils.GetEnv("JETSTREAM_ENDPOINT", "wss://jetstream2.us-east.bsky.network/subscribe", log),
			WantedCollections: []string{
				events.CollectionPost,
				events.CollectionLike,
				events.CollectionRepost,
			},
		},
		Dispatcher: services.DispatcherConfigFromEnv(log),
	}

	path := strings.TrimSpace(os.Getenv("FIREHOSE_CONFIG_PATH"))
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read firehose config %s: %w", path, err)
	}
	var fromFile firehose.Config
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return Config{}, fmt.Errorf("parse firehose config %s: %w", path, err)
	}
	if fromFile.Endpoint != "" {
		cfg.Firehose.Endpoint = fromFile.Endpoint
	}
	if len(fromFile.WantedCollections) > 0 {
		cfg.Firehose.WantedCollections = fromFile.WantedCollections
	}
	if len(fromFile.WantedDIDs) > 0 {
		cfg.Firehose.WantedDIDs = fromFile.WantedDIDs
	}
	if fromFile.Cursor > 0 {
		cfg.Firehose.Cursor = fromFile.Cursor
	}
	log.Info("Loaded firehose config overlay", "path", path)
	return cfg, nil
}
