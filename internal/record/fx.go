package record

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/internal/record/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("record",
	fx.Provide(NewStore),
	fx.Provide(
		func(s domain.Store) domain.Repository { return s },
		func(s domain.Store) domain.Reader { return s },
	),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	GenID     *snowflake.Node
	DB        *gorm.DB `optional:"true"`
}

// NewStore returns the backend selected by STORE_DRIVER.
func NewStore(p Params) (domain.Store, error) {
	cfg := p.Config.Store
	log := p.Log.Named("record.store")

	if cfg.Driver != config.StoreDriverMongo {
		if p.DB == nil {
			return nil, errors.New("sql record store requires a database connection")
		}
		log.Info("record store ready", zap.String("driver", cfg.Driver), zap.String("dialect", p.Config.DBType))
		return repository.NewSQLStore(p.DB, p.GenID), nil
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	store := repository.NewMongoStore(client, cfg)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx, nil); err != nil {
				return err
			}
			return store.EnsureIndexes(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	log.Info("record store ready",
		zap.String("driver", cfg.Driver),
		zap.String("database", cfg.MongoDatabase),
		zap.String("log_database", cfg.MongoLogDatabase),
	)
	return store, nil
}
