package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// schemaLockKey serializes AutoMigrate across replicas starting together.
const schemaLockKey int64 = 51204917

// GormRepository keeps each value as a jsonb row in Postgres.
type GormRepository struct {
	db       *gorm.DB
	maxBytes int64
}

// slogWriter lets gorm's logger print through slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

func NewGormRepository(dsn string, maxBytes int64, logger *slog.Logger) (*GormRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(slogWriter{logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Released automatically when the transaction ends.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", schemaLockKey).Error; err != nil {
			return fmt.Errorf("schema lock: %w", err)
		}
		return tx.AutoMigrate(&DocumentModel{})
	})
	if err != nil {
		return nil, fmt.Errorf("migrate documents table: %w", err)
	}
	return &GormRepository{db: db, maxBytes: maxBytes}, nil
}

func (r *GormRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row DocumentModel
	err := r.db.WithContext(ctx).Select("value").Where("key = ?", key).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(row.Value), true, nil
}

// Put upserts the row for key. Oversized values fail with ErrQuotaExceeded before touching the
// database.
func (r *GormRepository) Put(ctx context.Context, key string, value []byte) error {
	if err := checkQuota(r.maxBytes, len(value)); err != nil {
		return err
	}
	row := DocumentModel{
		Key:       key,
		Value:     datatypes.JSON(value),
		SizeBytes: int64(len(value)),
		UpdatedAt: time.Now().UTC(),
	}
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "size_bytes", "updated_at"}),
	}
	if err := r.db.WithContext(ctx).Clauses(upsert).Create(&row).Error; err != nil {
		return fmt.Errorf("postgres put %s: %w", key, err)
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Delete(&DocumentModel{Key: key})
	if res.Error != nil {
		return fmt.Errorf("postgres delete %s: %w", key, res.Error)
	}
	return nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
