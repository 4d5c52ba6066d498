// Package postgres implements the durable store over
// PostgreSQL with gorm.io/gorm. One repository struct per entity satisfies
// the uniform add/add_bulk/get_one/get_one_or_none/get_all_filtered/edit/
// delete/count contract; internal/interfaces.UnitOfWork wraps a *gorm.DB
// transaction with explicit commit/rollback and guaranteed release.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/storage/postgres/migrations"
)

// Store is the gorm-backed implementation of interfaces.Store.
type Store struct {
	db     *gorm.DB
	logger *common.Logger
}

// Open connects to Postgres per cfg, applies the embedded migration
// sequence, and returns a ready Store.
func Open(ctx context.Context, cfg common.StorageConfig, logger *common.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	if err := migrations.Apply(ctx, sqlDB, logger); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Begin opens a transactional unit-of-work. The caller must Commit or
// Rollback; both release the underlying transaction unconditionally.
func (s *Store) Begin(ctx context.Context) (interfaces.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &unitOfWork{tx: tx}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// unitOfWork wraps one *gorm.DB transaction, released on Commit or Rollback.
type unitOfWork struct {
	tx       *gorm.DB
	released bool
}

func (u *unitOfWork) Channels() interfaces.ChannelRepo           { return newChannelRepo(u.tx) }
func (u *unitOfWork) News() interfaces.NewsRepo                  { return newNewsRepo(u.tx) }
func (u *unitOfWork) Samples() interfaces.SampleRepo              { return newSampleRepo(u.tx) }
func (u *unitOfWork) Subscriptions() interfaces.SubscriptionRepo { return newSubscriptionRepo(u.tx) }
func (u *unitOfWork) Uploads() interfaces.UploadRepo              { return newUploadRepo(u.tx) }
func (u *unitOfWork) Trainings() interfaces.TrainingRepo          { return newTrainingRepo(u.tx) }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.released {
		return nil
	}
	u.released = true
	return u.tx.Commit().Error
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.released {
		return nil
	}
	u.released = true
	return u.tx.Rollback().Error
}
