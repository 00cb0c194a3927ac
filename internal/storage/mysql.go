package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string { return "linkcore_kv" }

// GormKV stores values in MySQL through gorm.
type GormKV struct {
	db *gorm.DB
}

// NewMySQLKV connects to MySQL using dsn and migrates the kv table.
func NewMySQLKV(dsn string) (*GormKV, error) {
	if dsn == "" {
		return nil, errors.New("storage: mysql dsn is required")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	return NewGormKV(db)
}

// NewGormKV wraps an existing gorm handle.
func NewGormKV(db *gorm.DB) (*GormKV, error) {
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(5)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv table: %w", err)
	}
	return &GormKV{db: db}, nil
}

// Get returns the value stored under key.
func (s *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var entry kvEntry
	err := s.db.WithContext(ctx).Where("`key` = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mysql get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set upserts value under key.
func (s *GormKV) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	entry := kvEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("mysql set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *GormKV) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&kvEntry{}).Error; err != nil {
		return fmt.Errorf("mysql delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
