package migration

import (
	"context"

	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/record/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the SQL record store schema up to date. Postgres uses the
// versioned migrations; sqlite and mysql fall back to gorm AutoMigrate.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")

	if cfg.DBType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("dialect", cfg.DBType), zap.Uint("version", version))
		return nil
	}

	if err := conn.WithContext(context.Background()).AutoMigrate(repository.Models()...); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("dialect", cfg.DBType))
	return nil
}
