package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on dev boots with the auto-migrate
// flag set. SQLite gets the GORM models since the SQL files target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if cfg.FeatureFlags.UseSQLite || strings.EqualFold(cfg.DB.Driver, db.DriverSQLite) {
		logg.Info(ctx, "auto-migrating storefront models on sqlite")
		return AutoMigrateModels(client)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	src := Embedded()
	pending, err := Pending(sqlDB, src)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logg.Debug(ctx, "schema up to date")
		return nil
	}
	ctx = logg.WithField(ctx, "pending", pending)
	logg.Info(ctx, "applying embedded migrations")
	if err := Run(ctx, sqlDB, src, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "embedded migrations applied")
	return nil
}

// AutoMigrateModels creates or updates every storefront table through GORM.
func AutoMigrateModels(client *db.Client) error {
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}
