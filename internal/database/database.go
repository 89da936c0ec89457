package database

import (
	"context"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	indexerconfig "github.com/flare-foundation/verifier-indexer-framework/pkg/config"
	indexerdb "github.com/flare-foundation/verifier-indexer-framework/pkg/database"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/flare-foundation/evm-address-indexer/internal/config"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
)

const globalVersionID = 1

// ErrStore marks failures of the backing database.
var ErrStore = errors.New("store failure")

type DB struct {
	g *gorm.DB
}

type Version struct {
	ID                uint64 `gorm:"primaryKey;unique"`
	GitTag            string
	GitHash           string `gorm:"type:varchar(40)"`
	BuildDate         uint64
	DefaultStartBlock uint64
	PageSize          int
}

func InitVersion() *Version {
	return &Version{
		ID: globalVersionID,
	}
}

// categoryEntities are dropped and migrated together.
var categoryEntities = []interface{}{
	new(entities.Transaction),
	new(entities.InternalTransaction),
	new(entities.TokenTransfer),
}

func New(cfg *config.DB) (*DB, error) {
	db, err := indexerdb.Connect(connectionConfig(cfg))
	if err != nil {
		return nil, err
	}

	logger.Debug("connected to the DB")

	if cfg.DropTableAtStart {
		logger.Info("DB tables dropped at start")

		if err := db.Migrator().DropTable(categoryEntities...); err != nil {
			return nil, err
		}
	}

	if err := db.AutoMigrate(append([]interface{}{new(Version)}, categoryEntities...)...); err != nil {
		return nil, err
	}

	logger.Debug("migrated DB entities")

	return &DB{g: db}, nil
}

// connectionConfig maps the [db] section onto the indexer framework's
// connection settings. History drop is not used here.
func connectionConfig(cfg *config.DB) *indexerconfig.DB {
	return &indexerconfig.DB{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Username:         cfg.Username,
		Password:         cfg.Password,
		DBName:           cfg.DBName,
		LogQueries:       cfg.LogQueries,
		DropTableAtStart: cfg.DropTableAtStart,
	}
}

func (db *DB) SaveVersion(ctx context.Context, version *Version) error {
	return db.g.WithContext(ctx).Save(version).Error
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.g.DB()
	if err != nil {
		return errors.Wrap(ErrStore, err.Error())
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(ErrStore, err.Error())
	}

	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.g.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
