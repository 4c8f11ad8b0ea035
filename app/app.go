// Package app wires configuration, storage, services and the HTTP surface
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"proveit/clock"
	"proveit/config"
	"proveit/controllers"
	"proveit/db"
	"proveit/internal/feedstream"
	"proveit/middlewares"
	"proveit/routes"
	"proveit/services"
	"proveit/storage"
	"proveit/store"
	"proveit/websocket"
)

const janitorInterval = time.Minute

// Options override dependencies, mainly for tests.
type Options struct {
	Clock clock.Clock
	// Store replaces the configured database driver.
	Store store.Store
	// Images replaces the configured object storage.
	Images ImageStore
}

// ImageStore uploads proof images and signs read URLs for them.
type ImageStore interface {
	services.Uploader
	storage.Presigner
}

type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store      store.Store
	Hub        *websocket.Hub
	Background *services.Background

	Users     *services.UserService
	Feed      *services.FeedService
	Goals     *services.GoalService
	Recorder  *services.CompletionRecorder
	Streaks   *services.StreakUpdater
	Sweeper   *services.Sweeper
	Reactions *services.ReactionLedger
	Friends   *services.FriendService
	Proof     *services.ProofService

	mongo   *db.Store
	redis   *redis.Client
	relay   *feedstream.Relay
	urls    *storage.URLCache
	handler http.Handler

	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	if err := a.openStore(ctx, opts); err != nil {
		return nil, err
	}
	images, err := a.openImages(ctx, opts)
	if err != nil {
		a.closeConnections(ctx)
		return nil, err
	}

	a.Hub = websocket.NewHub(logger)
	var publisher services.Publisher = a.Hub
	var reactionLimiter middlewares.Limiter
	if cfg.Redis.Addr != "" {
		rdb, err := feedstream.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.closeConnections(ctx)
			return nil, err
		}
		a.redis = rdb
		a.relay = feedstream.NewRelay(rdb, a.Hub, logger)
		publisher = a.relay
		reactionLimiter = feedstream.DefaultReactionLimit(rdb)
		logger.Info("feed events relayed through Redis", "stream", feedstream.StreamKey)
	}

	cal, err := services.NewCalendar(clk, cfg.Goals.DefaultTimeZone)
	if err != nil {
		a.closeConnections(ctx)
		return nil, err
	}
	a.urls = storage.NewURLCache(images, clk, cfg.Cache.ImageURLs)
	a.Background = services.NewBackground(logger, cfg.Goals.BackgroundTimeout)

	a.Users = services.NewUserService(a.Store.Users(), cal, cfg.Cache.Users, logger)
	a.Feed = services.NewFeedService(a.Store.Posts(), a.Users, a.urls, publisher, clk, logger)
	a.Streaks = services.NewStreakUpdater(a.Store, cal, logger)
	a.Recorder = services.NewCompletionRecorder(a.Store, a.Users, a.Streaks, logger)
	a.Sweeper = services.NewSweeper(a.Store, a.Feed, cal, cfg.Goals.StreakWarningWindow, logger)
	a.Reactions = services.NewReactionLedger(a.Store, a.Feed, logger)
	a.Goals = services.NewGoalService(a.Store, a.Users, a.Feed, logger)
	a.Friends = services.NewFriendService(a.Store.Users(), a.Users, logger)
	a.Proof = services.NewProofService(a.Recorder, a.Goals, a.Feed, images, logger)

	a.handler = routes.Router{
		JWTSecret:       cfg.Auth.JWTSecret,
		CORSOrigins:     cfg.CORS.Origins,
		Logger:          logger,
		Profiles:        controllers.NewProfileController(a.Users, logger),
		Goals:           controllers.NewGoalController(a.Goals, a.Proof, a.Sweeper, a.Background, logger),
		Posts:           controllers.NewPostController(a.Feed, a.Reactions, a.Sweeper, a.Background, logger),
		Friends:         controllers.NewFriendController(a.Friends, logger),
		Hub:             a.Hub,
		ReactionLimiter: reactionLimiter,
		Health:          a.health,
	}.Setup()
	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	if opts.Store != nil {
		a.Store = opts.Store
		return nil
	}
	switch a.Config.Database.Driver {
	case "memory":
		a.Logger.Warn("using in-memory store; data is lost on restart")
		a.Store = store.NewMemory()
		return nil
	case "mongo":
		s, err := db.Connect(ctx, a.Config.Database.URI, a.Config.Database.Name, a.Logger)
		if err != nil {
			return err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return err
		}
		a.mongo = s
		a.Store = s
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
	}
}

func (a *App) openImages(ctx context.Context, opts Options) (ImageStore, error) {
	if opts.Images != nil {
		return opts.Images, nil
	}
	if !a.Config.StorageEnabled() {
		a.Logger.Warn("no storage bucket configured; proof images are kept in memory")
		return storage.NewMemory("memory://proof-images"), nil
	}
	s3, err := storage.NewS3Storage(ctx, storage.S3Config{
		Region:    a.Config.Storage.Region,
		Bucket:    a.Config.Storage.Bucket,
		AccessKey: a.Config.Storage.AccessKey,
		SecretKey: a.Config.Storage.SecretKey,
		Endpoint:  a.Config.Storage.Endpoint,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Start launches the feed relay and the cache janitor. They run until
// Shutdown.
func (a *App) Start(ctx context.Context) error {
	ctx, a.stop = context.WithCancel(context.WithoutCancel(ctx))
	if a.relay != nil {
		if err := a.relay.Start(ctx); err != nil {
			a.stop()
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.relay.Run(ctx)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Users.PurgeExpired()
				a.urls.Purge()
			}
		}
	}()
	return nil
}

// Shutdown waits for background sweeps, stops the relay and closes
// connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Background.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("background work: %w", err))
	}
	if a.stop != nil {
		a.stop()
	}
	a.wg.Wait()
	errs = append(errs, a.closeConnections(ctx)...)
	return errors.Join(errs...)
}

func (a *App) closeConnections(ctx context.Context) []error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close mongo: %w", err))
		}
	}
	return errs
}

func (a *App) health(ctx context.Context) error {
	if a.mongo != nil {
		if err := a.mongo.Ping(ctx); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
