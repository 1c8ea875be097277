/*
Copyright (C) 2026  MemCP Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// StatsExporter periodically writes namespace Snapshots to an external SQL
// table, the same open-ping-query shape as storage/mysql_import.go's
// openMySQL, generalized from "pull a remote MySQL schema in" to "push our
// own counters out" so the statistics registry (H) is queryable from a
// regular BI/monitoring stack.
type StatsExporter struct {
	stats    *StatsRegistry
	log      *Logger
	db       *sql.DB
	table    string
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// ExporterConfig configures the optional stats exporter. Driver is either
// "mysql" or "postgres"; DSN is driver-specific.
type ExporterConfig struct {
	Driver   string
	DSN      string
	Table    string
	Interval time.Duration
}

func newStatsExporter(cfg ExporterConfig, stats *StatsRegistry, log *Logger) (*StatsExporter, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "dictcache_stats"
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &StatsExporter{
		stats:    stats,
		log:      log,
		db:       db,
		table:    table,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (e *StatsExporter) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		prefix VARCHAR(255) NOT NULL PRIMARY KEY,
		encoded_total BIGINT, decoded_total BIGINT,
		bytes_in BIGINT, bytes_out BIGINT,
		skipped_min_size BIGINT, skipped_max_size BIGINT,
		skipped_incompressible BIGINT, skipped_not_smaller BIGINT,
		skipped_disabled BIGINT, skipped_replay BIGINT,
		dict_misses BIGINT, updated_at TIMESTAMP
	)`, e.table)
	_, err := e.db.ExecContext(ctx, stmt)
	return err
}

// Start launches the periodic export loop.
func (e *StatsExporter) Start() {
	go func() {
		defer close(e.doneCh)
		ctx := context.Background()
		if err := e.ensureTable(ctx); err != nil {
			e.log.Errorf("stats exporter: create table: %v", err)
			return
		}
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.exportOnce(ctx)
			}
		}
	}()
}

func (e *StatsExporter) exportOnce(ctx context.Context) {
	for _, s := range e.stats.All() {
		stmt := fmt.Sprintf(`INSERT INTO %s
			(prefix, encoded_total, decoded_total, bytes_in, bytes_out,
			 skipped_min_size, skipped_max_size, skipped_incompressible,
			 skipped_not_smaller, skipped_disabled, skipped_replay,
			 dict_misses, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
			 encoded_total=VALUES(encoded_total), decoded_total=VALUES(decoded_total),
			 bytes_in=VALUES(bytes_in), bytes_out=VALUES(bytes_out),
			 skipped_min_size=VALUES(skipped_min_size), skipped_max_size=VALUES(skipped_max_size),
			 skipped_incompressible=VALUES(skipped_incompressible),
			 skipped_not_smaller=VALUES(skipped_not_smaller),
			 skipped_disabled=VALUES(skipped_disabled), skipped_replay=VALUES(skipped_replay),
			 dict_misses=VALUES(dict_misses), updated_at=VALUES(updated_at)`, e.table)
		_, err := e.db.ExecContext(ctx, stmt,
			s.Prefix, s.EncodedTotal, s.DecodedTotal, s.BytesIn, s.BytesOut,
			s.SkippedMinSize, s.SkippedMaxSize, s.SkippedIncompr, s.SkippedNotSmall,
			s.SkippedDisabled, s.SkippedReplay, s.DictMisses, time.Now())
		if err != nil {
			e.log.Errorf("stats exporter: insert %s: %v", s.Prefix, err)
		}
	}
}

func (e *StatsExporter) Stop() {
	close(e.stopCh)
	<-e.doneCh
	e.db.Close()
}
