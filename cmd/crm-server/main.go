package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentalcrm/crm/internal/config"
	"github.com/dentalcrm/crm/internal/domain/complaint"
	"github.com/dentalcrm/crm/internal/domain/dentist"
	"github.com/dentalcrm/crm/internal/domain/patient"
	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/blobstore"
	"github.com/dentalcrm/crm/internal/platform/db"
	"github.com/dentalcrm/crm/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crm-server",
		Short: "Dental clinic CRM API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CRM API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withPool loads the configuration and opens a pool for a one-shot command.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				schema, dir := migrateTarget(cmd, cfg)
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				schema, dir := migrateTarget(cmd, cfg)
				statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(os.Stdout, schema, statuses)
				return nil
			})
		},
	}
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the latest applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				schema, dir := migrateTarget(cmd, cfg)
				count, err := db.NewMigrator(pool, dir).Down(ctx, schema, steps)
				if err != nil {
					return fmt.Errorf("rollback failed after %d migration(s): %w", count, err)
				}
				fmt.Printf("Reverted %d migration(s) on schema %s.\n", count, schema)
				return nil
			})
		},
	}
	addMigrateFlags(downCmd)
	downCmd.Flags().Int("steps", 1, "Number of migrations to revert")
	cmd.AddCommand(downCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
}

func migrateTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, _ = cmd.Flags().GetString("schema")
	dir, _ = cmd.Flags().GetString("dir")
	if schema == "" {
		schema = cfg.DBSchema
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	return schema, dir
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage database schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schema and apply all migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				fmt.Printf("Creating schema: %s\n", name)
				if err := db.CreateSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
					return err
				}
				fmt.Println("Schema created successfully. Point DB_SCHEMA at it to serve from it.")
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Schema name (lowercase letters, digits, underscore)")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, session overrides kept in memory")
		mem := auth.NewMemoryStore()
		return mem, mem.Close, nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("connected to redis")
	return auth.NewRedisStore(client), func() { client.Close() }, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.ObjectStore, error) {
	if !cfg.StorageConfigured() {
		logger.Warn().Msg("STORAGE_ENDPOINT not set, clinic logos kept in memory")
		base := cfg.StoragePublicURL
		if base == "" {
			base = "http://localhost:" + cfg.Port + "/storage"
		}
		return blobstore.NewInMemoryStore(base, cfg.StorageBucket, blobstore.MaxLogoSize), nil
	}
	store, err := blobstore.NewMinioStore(blobstore.MinioConfig{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		UseSSL:    cfg.StorageUseSSL,
		Region:    cfg.StorageRegion,
		Bucket:    cfg.StorageBucket,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx, cfg.StorageRegion); err != nil {
		return nil, err
	}
	return store, nil
}

// app holds the wired handlers and the dependencies route registration
// needs.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	sessions   auth.SessionStore
	logos      blobstore.ObjectStore
	verifier   *auth.Verifier
	dentists   dentist.Repository
	authH      *auth.Handler
	dentistH   *dentist.Handler
	patientH   *patient.Handler
	complaintH *complaint.Handler
}

func newApp(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, sessions auth.SessionStore, logos blobstore.ObjectStore) *app {
	sessionCfg := auth.SessionConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Secret:   []byte(cfg.AuthJWTSecret),
	}
	signer := auth.NewSigner(sessionCfg, cfg.AuthTokenTTL)
	refresher := auth.NewRefresher(sessions, signer, cfg.AuthOverrideTTL)

	patientRepo := patient.NewRepo(pool)
	complaintRepo := complaint.NewRepo(pool)
	dentistRepo := dentist.NewRepo(pool)

	return &app{
		cfg:        cfg,
		logger:     logger,
		sessions:   sessions,
		logos:      logos,
		verifier:   auth.NewVerifier(sessionCfg, sessions),
		dentists:   dentistRepo,
		authH:      auth.NewHandler(sessions, signer, cfg.AuthSessionAge, logger),
		dentistH:   dentist.NewHandler(dentist.NewService(dentistRepo, logos, refresher, logger)),
		patientH:   patient.NewHandler(patient.NewService(patientRepo, logger)),
		complaintH: complaint.NewHandler(complaint.NewService(complaintRepo, patientRepo, logger)),
	}
}

// routes installs the global middleware chain and every endpoint. scope is
// the per-request database middleware, installed behind session resolution;
// nil leaves it out.
func (a *app) routes(e *echo.Echo, scope echo.MiddlewareFunc, health echo.HandlerFunc) {
	cfg := a.cfg
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(cfg.HSTS()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if health != nil {
		e.GET("/health/db", health)
	}
	if mem, ok := a.logos.(*blobstore.InMemoryStore); ok {
		e.GET("/storage/"+cfg.StorageBucket+"/*", serveObject(mem))
	}

	chain := []echo.MiddlewareFunc{auth.SessionMiddleware(a.verifier, a.logger)}
	if cfg.IsDev() {
		if devID, err := cfg.DevDentist(); err == nil {
			chain = append(chain, auth.DevSessionMiddleware(devID, a.sessions))
		}
	}
	rateLimit := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		rateLimit.RequestsPerSecond = cfg.RateLimitRPS
		rateLimit.BurstSize = cfg.RateLimitBurst
	}
	chain = append(chain, middleware.RateLimit(rateLimit))
	if scope != nil {
		chain = append(chain, scope)
	}

	api := e.Group("/api/v1", chain...)
	a.authH.RegisterRoutes(api)
	a.dentistH.RegisterRoutes(api)

	onboarded := api.Group("", auth.RequireOnboarded(a.dentists, a.sessions, cfg.AuthOverrideTTL, a.logger))
	a.patientH.RegisterRoutes(onboarded)
	a.complaintH.RegisterRoutes(onboarded)
}

// serveObject serves logos kept by the in-memory store so their public URLs
// resolve when no object storage is configured.
func serveObject(store *blobstore.InMemoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, obj, err := store.Download(c.Request().Context(), c.Param("*"))
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return echo.ErrNotFound
		}
		if err != nil {
			return err
		}
		defer rc.Close()
		return c.Stream(http.StatusOK, obj.ContentType, rc)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger.Warn().Str("dev_dentist_id", cfg.DevDentistID).
			Msg("ENV=development: requests without a token are served as the development dentist")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	sessions, closeSessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to session store")
	}
	defer closeSessions()

	logos, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise object storage")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := newApp(cfg, logger, pool, sessions, logos)
	a.routes(e, db.ScopeMiddleware(pool, cfg.DBSchema, auth.AuthSkipper),
		db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }, logger))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
