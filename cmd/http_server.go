package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	auditPostgres "github.com/opsdesk/storeops/internal/audit/postgres"
	"github.com/opsdesk/storeops/internal/permission"
	permissionPostgres "github.com/opsdesk/storeops/internal/permission/postgres"
	"github.com/opsdesk/storeops/internal/product"
	productPostgres "github.com/opsdesk/storeops/internal/product/postgres"
	"github.com/opsdesk/storeops/internal/transport"
	"github.com/opsdesk/storeops/internal/transport/middleware"
	"github.com/opsdesk/storeops/internal/transport/rest"
	"github.com/opsdesk/storeops/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		lg.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		lg.Error("failed to open gorm over database connection", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	if err := wireRoutes(router, cfg, db, gormDB, lg); err != nil {
		lg.Error("failed to wire routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
		if err := db.Close(); err != nil {
			lg.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	lg.Info("server stopped")
}

func wireRoutes(router *chi.Mux, cfg *internal.Config, db *sqlx.DB, gormDB *gorm.DB, lg *slog.Logger) error {
	registry, err := permission.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("failed to build permission registry: %w", err)
	}

	publicKey, err := cfg.Security.GetActorTokenPublicKey()
	if err != nil {
		return fmt.Errorf("failed to load actor token public key: %w", err)
	}
	verifier := middleware.NewActorVerifier(publicKey, cfg.Security.ActorTokenIssuer)

	auditRepo := auditPostgres.NewAuditRepository(gormDB)
	auditService := audit.NewService(auditRepo, lg)

	cache := permission.NewSnapshotCache()
	permissionRepo := permissionPostgres.NewPermissionRepository(gormDB)
	permissionService := permission.NewService(registry, permissionRepo, auditService, cache, lg)
	evaluator := permission.NewEvaluator(registry, permissionRepo, cache, lg)
	gate := middleware.NewGate(evaluator, lg)

	productRepo := productPostgres.NewProductRepository(gormDB)
	productService := product.NewService(productRepo, auditService, lg)

	baseHandler := transport.NewBaseHandler(lg)
	permissionHandler := permission.NewHandler(baseHandler, permissionService, evaluator, registry)
	auditHandler := audit.NewHandler(baseHandler, auditService)
	productHandler := product.NewHandler(baseHandler, productService)

	rest.RegisterAllRoutes(router, db.DB, cfg, verifier, gate, permissionHandler, auditHandler, productHandler, lg)
	return nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
