// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/allowlist"
	"github.com/JakeFAU/carsearch/internal/api"
	"github.com/JakeFAU/carsearch/internal/clock/system"
	"github.com/JakeFAU/carsearch/internal/config"
	"github.com/JakeFAU/carsearch/internal/id/uuid"
	"github.com/JakeFAU/carsearch/internal/inventory"
	invmemory "github.com/JakeFAU/carsearch/internal/inventory/memory"
	"github.com/JakeFAU/carsearch/internal/inventory/remote"
	"github.com/JakeFAU/carsearch/internal/logging"
	"github.com/JakeFAU/carsearch/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/carsearch/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/carsearch/internal/publisher/pubsub"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/search"
	"github.com/JakeFAU/carsearch/internal/seo"
	"github.com/JakeFAU/carsearch/internal/slugs"
	gcsstorage "github.com/JakeFAU/carsearch/internal/storage/gcs"
	localstorage "github.com/JakeFAU/carsearch/internal/storage/local"
	memorystorage "github.com/JakeFAU/carsearch/internal/storage/memory"
	pgstore "github.com/JakeFAU/carsearch/internal/storage/postgres"
	redisstore "github.com/JakeFAU/carsearch/internal/storage/redis"
	"github.com/JakeFAU/carsearch/internal/store"
	"github.com/JakeFAU/carsearch/internal/telemetry"
)

const (
	transitionBuffer = 1000
	sweepInterval    = time.Minute
)

// App contains the application's dependencies. It is built once at startup
// and closed on shutdown.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  *system.Clock

	registry   *slugs.Registry
	normalizer *query.Normalizer
	allowlist  *allowlist.Store
	catalog    *inventory.Catalog
	hysteresis *seo.Hysteresis
	evaluator  *seo.Evaluator
	texts      *seo.Texts
	pipeline   *search.Pipeline
	blobStore  store.BlobStore
	publisher  store.Publisher
	limiter    *ratelimit.Limiter
	apiServer  *api.Server

	pool            *pgxpool.Pool
	redis           *goredis.Client
	storage         *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	tracerShutdown  func(context.Context) error
	ready           map[string]api.ReadinessCheck
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("base_url", cfg.Site.BaseURL),
		zap.String("allowlist_backend", cfg.Allowlist.Backend),
		zap.String("state_backend", cfg.State.Backend),
		zap.String("inventory_backend", cfg.Inventory.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ready:  map[string]api.ReadinessCheck{},
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.logger.Debug("rate limiter buckets evicted", zap.Int("count", n))
			}
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync() //nolint:errcheck // stdout sync fails on some terminals
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Application.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	if err := app.buildTraced(ctx, tp.Shutdown); err != nil {
		return nil, err
	}
	return app, nil
}

// buildTraced wires dependencies under an already running tracer provider.
// A failed build releases everything opened so far, the tracer included.
func (a *App) buildTraced(ctx context.Context, tracerShutdown func(context.Context) error) error {
	a.tracerShutdown = tracerShutdown
	if err := a.build(ctx); err != nil {
		a.closeInfrastructure()
		a.closeObservability(ctx)
		return err
	}
	return nil
}

func (a *App) build(ctx context.Context) error {
	a.logger.Info("building application dependencies")

	var err error
	if a.registry, err = setupRegistry(a); err != nil {
		return err
	}
	if err = setupDatabase(ctx, a); err != nil {
		return err
	}
	if err = setupRedis(ctx, a); err != nil {
		return err
	}
	stateStore, err := setupState(a)
	if err != nil {
		return err
	}
	allowSource, err := setupAllowlist(a)
	if err != nil {
		return err
	}
	invSource, err := setupInventory(a)
	if err != nil {
		return err
	}
	if a.blobStore, err = setupStorage(ctx, a); err != nil {
		return err
	}
	if a.publisher, err = setupPublisher(ctx, a); err != nil {
		return err
	}

	a.allowlist = allowlist.New(allowSource, a.cfg.AllowlistRefresh(), a.clock, a.logger.Named("allowlist"))
	a.catalog = inventory.NewCatalog(invSource, a.cfg.InventoryRefresh(), a.clock, a.logger.Named("inventory"))
	if err := a.wireEngines(stateStore); err != nil {
		return err
	}

	deps := a.pageDeps(a.evaluator)
	deps.Allowlist = a.allowlist
	deps.Ready = a.ready
	if a.cfg.RateLimit.Enabled {
		a.limiter = ratelimit.New(ratelimit.Config{
			RPS:               a.cfg.RateLimit.RPS,
			Burst:             a.cfg.RateLimit.Burst,
			IdleTTL:           time.Duration(a.cfg.RateLimit.IdleSeconds) * time.Second,
			TrustForwardedFor: a.cfg.RateLimit.TrustForwardedFor,
		})
		deps.RateLimit = a.limiter.Middleware
		a.logger.Info("rate limiter enabled",
			zap.Float64("rps", a.cfg.RateLimit.RPS),
			zap.Int("burst", a.cfg.RateLimit.Burst),
		)
	}
	a.apiServer = api.NewServer(deps, *a.cfg, a.logger.Named("api"))
	return nil
}

// wireEngines builds the search and SEO engines over the stores.
func (a *App) wireEngines(st store.StateStore) error {
	th := seo.Thresholds{
		IndexOn:       a.cfg.SEO.IndexOnThreshold,
		IndexOff:      a.cfg.SEO.IndexOffThreshold,
		MinIndexCount: a.cfg.SEO.MinIndexCount,
	}
	if err := th.Validate(); err != nil {
		return fmt.Errorf("seo thresholds: %w", err)
	}
	texts, err := seo.NewTexts(a.registry, a.cfg.Site.Name)
	if err != nil {
		return fmt.Errorf("page texts init failed: %w", err)
	}
	a.texts = texts
	a.normalizer = query.NewNormalizer(a.registry, a.cfg.Search.MaxPageSize)
	a.pipeline = search.NewPipeline(search.Config{
		FreshnessDays:   a.cfg.Search.FreshnessDays,
		DefaultPageSize: a.cfg.Search.DefaultPageSize,
	}, a.clock)
	a.hysteresis = seo.NewHysteresis(st, th, a.clock, a.publisher, uuid.New(), a.logger.Named("hysteresis"))
	a.evaluator = a.newEvaluator(texts, a.hysteresis)
	return nil
}

func (a *App) newEvaluator(texts *seo.Texts, decider seo.Decider) *seo.Evaluator {
	return seo.NewEvaluator(
		seo.EvaluatorConfig{BaseURL: a.cfg.Site.BaseURL, SiteName: a.cfg.Site.Name},
		seo.NewClassifier(a.registry, a.normalizer),
		seo.NewUpgrader(a.registry),
		seo.NewBuilder(a.registry),
		texts,
		a.allowlist,
		decider,
		a.logger.Named("seo"),
	)
}

func (a *App) pageDeps(evaluator api.PageEvaluator) api.Deps {
	return api.Deps{
		Evaluator:  evaluator,
		Searcher:   a.pipeline,
		Inventory:  a.catalog,
		Normalizer: a.normalizer,
	}
}

func setupRegistry(app *App) (*slugs.Registry, error) {
	if app.cfg.Slugs.Path == "" {
		reg, err := slugs.Default()
		if err != nil {
			return nil, fmt.Errorf("default slug registry: %w", err)
		}
		return reg, nil
	}
	reg, err := slugs.LoadFile(app.cfg.Slugs.Path)
	if err != nil {
		return nil, fmt.Errorf("slug registry %s: %w", app.cfg.Slugs.Path, err)
	}
	app.logger.Info("slug registry loaded", zap.String("path", app.cfg.Slugs.Path))
	return reg, nil
}

func usesBackend(cfg *config.Config, name string) bool {
	return cfg.Allowlist.Backend == name || cfg.State.Backend == name || cfg.Inventory.Backend == name
}

func setupDatabase(ctx context.Context, app *App) error {
	if !usesBackend(app.cfg, config.BackendPostgres) {
		return nil
	}
	var err error
	app.pool, err = pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.DB.MaxConnLifetimeSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("postgres pool init failed: %w", err)
	}
	if app.cfg.DB.Migrate {
		if err := pgstore.Migrate(ctx, app.pool); err != nil {
			return fmt.Errorf("postgres migrate failed: %w", err)
		}
		app.logger.Info("postgres schema applied")
	}
	app.ready["postgres"] = app.pool.Ping
	app.logger.Info("postgres pool initialized", zap.Int32("max_conns", app.cfg.DB.MaxConns))
	return nil
}

func setupRedis(ctx context.Context, app *App) error {
	if !usesBackend(app.cfg, config.BackendRedis) {
		return nil
	}
	var err error
	app.redis, err = redisstore.NewClient(ctx, redisstore.Config{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
		PoolSize: app.cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("redis client init failed: %w", err)
	}
	app.ready["redis"] = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	app.logger.Info("redis client initialized", zap.String("addr", app.cfg.Redis.Addr))
	return nil
}

func setupState(app *App) (store.StateStore, error) {
	var st store.StateStore
	switch app.cfg.State.Backend {
	case config.BackendPostgres:
		pg, err := pgstore.NewStateStore(app.pool, app.cfg.DB.StateTable)
		if err != nil {
			return nil, fmt.Errorf("postgres state store init failed: %w", err)
		}
		st = pg
	case config.BackendRedis:
		ttl := time.Duration(app.cfg.Redis.StateTTLHours) * time.Hour
		st = redisstore.NewStateStore(app.redis, app.cfg.Redis.Prefix, ttl)
	default:
		app.logger.Warn("using in-memory hysteresis state; decisions reset on restart")
		st = memorystorage.NewStateStore()
	}
	app.logger.Info("state store ready", zap.String("backend", app.cfg.State.Backend))
	return st, nil
}

func setupAllowlist(app *App) (store.AllowlistSource, error) {
	switch app.cfg.Allowlist.Backend {
	case config.BackendPostgres:
		src, err := pgstore.NewAllowlistSource(app.pool, app.cfg.DB.AllowlistTable)
		if err != nil {
			return nil, fmt.Errorf("postgres allowlist init failed: %w", err)
		}
		return src, nil
	case config.BackendRedis:
		return redisstore.NewAllowlistSource(app.redis, app.cfg.Redis.Prefix), nil
	default:
		app.logger.Info("using in-memory allowlist", zap.Int("seed_paths", len(app.cfg.Allowlist.Paths)))
		return memorystorage.NewAllowlistSource(app.cfg.Allowlist.Paths...), nil
	}
}

func setupInventory(app *App) (inventory.Source, error) {
	switch app.cfg.Inventory.Backend {
	case config.BackendPostgres:
		src, err := pgstore.NewInventorySource(app.pool, app.cfg.DB.CarsTable)
		if err != nil {
			return nil, fmt.Errorf("postgres inventory init failed: %w", err)
		}
		return src, nil
	case config.BackendRemote:
		src, err := remote.New(remote.Config{
			BaseURL: app.cfg.Inventory.RemoteURL,
			Timeout: time.Duration(app.cfg.Inventory.TimeoutSeconds) * time.Second,
			APIKey:  app.cfg.Inventory.RemoteAPIKey,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("remote inventory init failed: %w", err)
		}
		app.logger.Info("using remote inventory", zap.String("url", app.cfg.Inventory.RemoteURL))
		return src, nil
	default:
		cars, err := invmemory.LoadFixtureFile(app.cfg.Inventory.FixturePath, app.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("mock inventory init failed: %w", err)
		}
		app.logger.Info("using mock inventory",
			zap.String("fixture", app.cfg.Inventory.FixturePath),
			zap.Int("cars", len(cars)),
		)
		return invmemory.New(cars), nil
	}
}

func setupStorage(ctx context.Context, app *App) (store.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend")
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket:       app.cfg.Storage.GCSBucket,
			Prefix:       app.cfg.Storage.Prefix,
			CacheControl: app.cfg.Storage.CacheControl,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.ready["gcs"] = blobStore.CheckBucket
		app.logger.Debug("GCS storage backend", zap.String("bucket", app.cfg.Storage.GCSBucket))
		return blobStore, nil
	case config.BackendLocal:
		app.logger.Info("using local storage backend")
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", app.cfg.Storage.BaseDir))
		return blobStore, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (store.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.NewBounded(transitionBuffer), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = app.pubsubClient.Publisher(app.cfg.PubSub.TopicName)
	app.pubsubPublisher.EnableMessageOrdering = app.cfg.PubSub.Ordering
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
		zap.Bool("ordering", app.cfg.PubSub.Ordering),
	)
	return gcppublisher.New(app.pubsubPublisher), nil
}
