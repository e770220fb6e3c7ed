package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/med_assist/internal/models"
)

const sqlitePrefix = "sqlite:"

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// Open connects to DATABASE_URL and migrates the schema. A "sqlite:" prefix
// selects the embedded driver (e.g. "sqlite::memory:" or "sqlite:./med.db"),
// anything else is handed to the postgres driver.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	const op = "db.Open"

	if dsn == "" {
		return nil, fmt.Errorf("%s: DATABASE_URL is empty", op)
	}

	cfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	}

	var (
		dialector gorm.Dialector
		embedded  bool
	)
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		dialector = sqlite.Open(path)
		embedded = true
	} else {
		dialector = postgres.Open(dsn)
		cfg.PrepareStmt = true
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: sql.DB: %w", op, err)
	}

	if embedded {
		// one connection keeps an in-memory database alive and serialises writers
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		configurePool(sqlDB)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
