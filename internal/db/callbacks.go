/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/example/relaycast/internal/telemetry"
)

// instanceStartTimeKey is the gorm instance-scoped key a before-callback uses
// to hand its start time to the matching after-callback.
const instanceStartTimeKey = "relaycast:query_start"

// RegisterCallbacks attaches before/after timing hooks to every CRUD chain,
// so every query the history store issues reports its latency and outcome
// through the same metrics every other subsystem uses.
func RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("relaycast:before_query", recordStartTime); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("relaycast:after_query", recordOutcome("query")); err != nil {
		return err
	}

	if err := db.Callback().Create().Before("gorm:create").Register("relaycast:before_create", recordStartTime); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("relaycast:after_create", recordOutcome("create")); err != nil {
		return err
	}

	if err := db.Callback().Update().Before("gorm:update").Register("relaycast:before_update", recordStartTime); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("relaycast:after_update", recordOutcome("update")); err != nil {
		return err
	}

	if err := db.Callback().Delete().Before("gorm:delete").Register("relaycast:before_delete", recordStartTime); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("relaycast:after_delete", recordOutcome("delete")); err != nil {
		return err
	}

	return nil
}

func recordStartTime(db *gorm.DB) {
	db.InstanceSet(instanceStartTimeKey, time.Now())
}

// recordOutcome builds the after-hook for operation, observing query latency
// and, for anything other than a plain not-found result, bumping the error
// counter so a misbehaving migration or a dropped connection shows up in the
// same dashboards as everything else.
func recordOutcome(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		startedAt, ok := db.InstanceGet(instanceStartTimeKey)
		if !ok {
			return
		}
		started, ok := startedAt.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())

		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "query_error").Inc()
		}
	}
}

// UpdateConnectionMetrics samples the pool's current stats into
// DatabaseConnectionsActive. Called periodically by WatchConnectionMetrics.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
