package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/stackbound/identity-api/config"
	"github.com/stackbound/identity-api/internal/container"
	"github.com/stackbound/identity-api/internal/domain/repository"
	"github.com/stackbound/identity-api/internal/infrastructure/filestore"
	pginfra "github.com/stackbound/identity-api/internal/infrastructure/postgres"
	"github.com/stackbound/identity-api/internal/interface/middleware"
	"github.com/stackbound/identity-api/internal/router"
	"github.com/stackbound/identity-api/pkg/helpers"
	"github.com/stackbound/identity-api/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// JWT: a production process must not run on the built-in dev secret.
	if cfg.IsProduction() && cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Fatal("JWT_SECRET must be set in production")
	}
	jwtManager := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Identity store: a store that cannot be initialized is fatal before
	// the server starts accepting requests.
	repo, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize identity store: %v", err)
	}
	defer cleanup()

	// Redis backs rate limiting only; the limiter fails open without it.
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetRepo(repo)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 && !cfg.IsProduction() {
		corsCfg.AllowCredentials = false
		corsCfg.AllowAllOrigins = true
	}
	if corsCfg.AllowAllOrigins || len(corsCfg.AllowOrigins) > 0 {
		r.Use(cors.New(corsCfg))
	}
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r)
	// Global limit per client IP, matching the original deployment budget.
	reg.Use(middleware.RateLimit(rdb, 100, 15*time.Minute, middleware.KeyByIP()))
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// buildStore constructs the configured identity store backend and runs its
// initialization. The returned cleanup releases backend resources.
func buildStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repository.IdentityRepository, func(), error) {
	switch cfg.StoreDriver {
	case "file":
		store := filestore.New(cfg.DataDir)
		if err := store.Init(ctx); err != nil {
			return nil, nil, err
		}
		logger.WithField("data_dir", cfg.DataDir).Info("file identity store ready")
		return store, func() {}, nil

	case "postgres":
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			return nil, nil, err
		}
		if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store := pginfra.NewIdentityRepository(pool)
		if err := store.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres identity store ready")
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
