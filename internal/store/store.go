// Package store persists resolved metadata and media by NFT identifier.
// Records are always written as a whole: an update replaces the previous
// record instead of patching it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tendant/nft-enricher/internal/nft"
)

type metadataRecord struct {
	Identifier string       `gorm:"primaryKey;size:128"`
	Metadata   nft.Metadata `gorm:"serializer:json"`
	UpdatedAt  time.Time
}

func (metadataRecord) TableName() string { return "nft_metadata" }

type mediaRecord struct {
	Identifier string      `gorm:"primaryKey;size:128"`
	Media      []nft.Media `gorm:"serializer:json"`
	UpdatedAt  time.Time
}

func (mediaRecord) TableName() string { return "nft_media" }

type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the SQLite database at dsn. The pure Go driver
// registered as "sqlite" is used so the worker builds without cgo.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&metadataRecord{}, &mediaRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetMetadata returns found == false when nothing was ever stored.
func (s *Store) GetMetadata(ctx context.Context, identifier string) (nft.Metadata, bool, error) {
	var rec metadataRecord
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get metadata %s: %w", identifier, err)
	}
	if rec.Metadata == nil {
		rec.Metadata = nft.Metadata{}
	}
	return rec.Metadata, true, nil
}

func (s *Store) SetMetadata(ctx context.Context, identifier string, md nft.Metadata) error {
	rec := metadataRecord{Identifier: identifier, Metadata: md}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return fmt.Errorf("set metadata %s: %w", identifier, err)
	}
	return nil
}

func (s *Store) GetMedia(ctx context.Context, identifier string) ([]nft.Media, bool, error) {
	var rec mediaRecord
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get media %s: %w", identifier, err)
	}
	return rec.Media, true, nil
}

func (s *Store) SetMedia(ctx context.Context, identifier string, media []nft.Media) error {
	if media == nil {
		media = []nft.Media{}
	}
	rec := mediaRecord{Identifier: identifier, Media: media}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return fmt.Errorf("set media %s: %w", identifier, err)
	}
	return nil
}
