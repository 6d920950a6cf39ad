package container

import (
	"context"
	"fmt"
	"time"

	"menucrawler/crawler/internal/classifier"
	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/crawl"
	"menucrawler/crawler/internal/discovery"
	"menucrawler/crawler/internal/export"
	"menucrawler/crawler/internal/platform"
	"menucrawler/crawler/internal/proxy"
	"menucrawler/crawler/internal/queue"
	"menucrawler/crawler/internal/repository"
	"menucrawler/crawler/internal/service"
	"menucrawler/crawler/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Fetcher    client.PageFetcher
	Sessions   state.SessionStore
	Queue      queue.Queue                 // nil unless redis is enabled
	Repository repository.CrawlRepository // nil unless the database is enabled

	Service *service.Service

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	// Initialize ProxySupplier
	proxySupplier, err := proxy.NewProxySupplier(ctx, cfg.Crawler.Proxies, cfg.Platform.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	fetcher := client.NewPageFetcher(cfg.Crawler, proxySupplier)
	container.Fetcher = fetcher

	rules, err := platform.NewRules(cfg.Platform)
	if err != nil {
		return nil, err
	}

	cls, err := classifier.New(fetcher, rules, classifier.PolicyFrom(cfg.Classifier))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	delay := time.Duration(cfg.Crawler.DelayMS) * time.Millisecond

	discoverer, err := discovery.New(fetcher, cls, rules, client.NewPacer(delay), cfg.Crawler.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize discoverer: %w", err)
	}
	orchestrator := crawl.New(fetcher, client.NewPacer(delay))

	if cfg.Redis.Enabled {
		if err := container.connectRedis(ctx); err != nil {
			container.Close()
			return nil, err
		}
	}

	if cfg.Database.Enabled {
		if err := container.connectDatabase(ctx); err != nil {
			container.Close()
			return nil, err
		}
	}

	sessions, err := container.newSessionStore()
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Sessions = sessions

	// Optional collaborators are passed as untyped nil so the service can test for them
	var retryQueue queue.Queue
	if container.Queue != nil {
		retryQueue = container.Queue
	}
	var crawlRepo repository.CrawlRepository
	if container.Repository != nil {
		crawlRepo = container.Repository
	}

	container.Service = service.NewService(
		fetcher,
		discoverer,
		orchestrator,
		sessions,
		export.NewExporter(cfg.Export),
		retryQueue,
		crawlRepo,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MaxRetries,
	)

	return container, nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Config.Redis.Host, c.Config.Redis.Port),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})
	c.redis = rdb

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Queue = redisQueue
	return nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	db, err := pgxpool.New(ctx,
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Config.Database.Host,
			c.Config.Database.Port,
			c.Config.Database.User,
			c.Config.Database.Password,
			c.Config.Database.Name,
		))
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	c.db = db

	crawlRepo := repository.NewCrawlRepository(db)
	if err := crawlRepo.EnsureSchema(ctx); err != nil {
		return err
	}

	log.Info("✅ Connected to PostgreSQL successfully")

	c.Repository = crawlRepo
	return nil
}

func (c *Container) newSessionStore() (state.SessionStore, error) {
	switch c.Config.Session.Backend {
	case "redis":
		return state.NewRedisSessionStore(c.redis), nil
	case "memory":
		return state.NewMemorySessionStore(), nil
	default:
		store, err := state.NewSQLiteSessionStore(c.Config.Session.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return store, nil
	}
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Debug("Shutting down container...")

	if c.Sessions != nil {
		if err := c.Sessions.Close(); err != nil {
			log.Errorf("❌ Failed to close session store: %v", err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}

	log.Debug("Container shut down successfully")
	return nil
}
