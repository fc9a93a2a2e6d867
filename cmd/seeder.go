package cmd

import (
	"context"
	"log"
	"os"

	"github.com/opsdesk/storeops/internal/permission"
	permissionPostgres "github.com/opsdesk/storeops/internal/permission/postgres"
	"github.com/opsdesk/storeops/pkg/logger"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the permission catalog and default role grants",
	Long: `Ensure every registered permission exists and apply the default
role template to roles that have never been configured. Safe to run
repeatedly and from multiple replicas; explicit grants and revokes made
after the first seed are never overridden.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		logger.Init(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level)
		lg := logger.L()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		registry, err := permission.DefaultRegistry()
		if err != nil {
			log.Fatalf("failed to build permission registry: %v", err)
		}

		repo := permissionPostgres.NewPermissionRepository(gormDB)
		cache := permission.NewSnapshotCache()
		service := permission.NewService(registry, repo, nil, cache, lg)

		if err := service.Seed(context.Background()); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
	},
}
