package storage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultDSN = "canvas.db"
)

// Connect opens the relay database and migrates it. A postgres:// or
// postgresql:// DSN selects postgres; anything else is a sqlite path.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dsn == "" {
		dsn = DefaultDSN
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db     *gorm.DB
		err    error
		driver string
	)
	if isPostgres(dsn) {
		driver = "postgres"
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		driver = "sqlite"
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// One writer at a time; also keeps ":memory:" a single database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&PixelRecord{}, &ChatRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database ready", zap.String("driver", driver))
	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
