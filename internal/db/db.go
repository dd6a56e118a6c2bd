/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/relaycast/internal/config"
)

// Connection pool limits, sized for the history
// store's access pattern: a handful of writers recording session lifecycle
// events, never the bulk reads a station's schedule/listing tables would see.
const (
	maxIdleConns    = 5
	maxOpenConns    = 20
	connMaxLifetime = 30 * time.Minute
)

// Connect establishes a gorm connection for the configured backend and wires
// the process logger and telemetry callbacks into it, so slow or failing
// session-history queries surface the same way every other subsystem does.
func Connect(cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newZerologGormLogger(logger.With().Str("component", "db").Logger(), cfg.Environment),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBBackend, err)
	}

	if cfg.DBBackend == config.DatabaseSQLite {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite WAL mode: %w", err)
		}
		if err := db.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := RegisterCallbacks(db); err != nil {
		return nil, fmt.Errorf("register telemetry callbacks: %w", err)
	}

	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBBackend {
	case config.DatabasePostgres:
		return postgres.Open(cfg.DBDSN), nil
	case config.DatabaseMySQL:
		return mysql.Open(cfg.DBDSN), nil
	case config.DatabaseSQLite:
		return sqlite.Open(cfg.DBDSN), nil
	default:
		return nil, fmt.Errorf("unknown database backend: %s", cfg.DBBackend)
	}
}

// Close releases database resources.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WatchConnectionMetrics polls the connection pool every interval until ctx
// is canceled, feeding DatabaseConnectionsActive. Intended to run as its own
// goroutine for the lifetime of the serve command.
func WatchConnectionMetrics(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateConnectionMetrics(db)
		}
	}
}

// zerologGormLogger adapts gorm's logger.Interface onto the process's
// zerolog logger, so database activity lands in the same structured output
// as every other component instead of gorm's own stdlib-log writer.
type zerologGormLogger struct {
	logger        zerolog.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

func newZerologGormLogger(logger zerolog.Logger, environment string) gormlogger.Interface {
	level := gormlogger.Warn
	if environment == "development" {
		level = gormlogger.Info
	}
	return &zerologGormLogger{logger: logger, logLevel: level, slowThreshold: 200 * time.Millisecond}
}

func (l *zerologGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *zerologGormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.logger.Info().Msgf(msg, args...)
	}
}

func (l *zerologGormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, args...)
	}
}

func (l *zerologGormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.logger.Error().Msgf(msg, args...)
	}
}

func (l *zerologGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	event := l.logger.Debug()
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.logLevel >= gormlogger.Error:
		event = l.logger.Error().Err(err)
	case elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		event = l.logger.Warn()
	case l.logLevel < gormlogger.Info:
		return
	}
	event.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query")
}
