package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/feedquest-backend/internal/db"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	router := wireRouter(serviceset)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
	}, nil
}

// Start launches the firehose consumer feeding the dispatcher. Consumer
// errors reconnect internally; Start only returns once the context below is
// cancelled via Close.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		err := a.Services.Consumer.Run(ctx, func(ctx context.Context, ev *firehose.Event) {
			if err := a.Services.Dispatcher.Submit(ctx, ev); err != nil && ctx.Err() == nil {
				a.Log.Warn("Dropped event on submit", "did", ev.DID, "error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			a.Log.Error("Firehose consumer stopped", "error", err)
		}
	}()
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

// Close stops ingestion, drains in-flight events, and flushes the logger.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Services.Dispatcher.Shutdown()
	if a.Services.XPCounter != nil {
		if err := a.Services.XPCounter.Close(); err != nil {
			a.Log.Warn("Failed to close XP counter", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
