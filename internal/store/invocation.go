package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
)

// Invocation is one recorded Process call.
type Invocation struct {
	ID            string
	PluginID      string
	PluginVersion string
	DataType      string
	Success       bool
	ErrorMessage  string
	Duration      time.Duration
	CreatedAt     time.Time
}

// InvocationStats summarizes the invocation log of one plugin.
type InvocationStats struct {
	Total       int
	Succeeded   int
	Failed      int
	AvgDuration time.Duration
}

// InvocationRepository appends to and reads the invocation log.
type InvocationRepository struct {
	db *sql.DB
}

// Invocations returns the invocation repository for this store.
func (s *Store) Invocations() *InvocationRepository {
	return &InvocationRepository{db: s.db}
}

// Create appends inv to the log. CreatedAt is set when zero.
func (r *InvocationRepository) Create(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		return errors.New("invocation id is required")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invocations (id, plugin_id, plugin_version, data_type, success, error_message, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.PluginID, inv.PluginVersion, inv.DataType, inv.Success,
		inv.ErrorMessage, inv.Duration.Milliseconds(), inv.CreatedAt,
	)
	return errors.Wrapf(err, "record invocation %s", inv.ID)
}

// ListByPlugin returns the newest invocations of pluginID first. A limit
// <= 0 returns them all.
func (r *InvocationRepository) ListByPlugin(ctx context.Context, pluginID string, limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plugin_id, plugin_version, data_type, success, error_message, duration_ms, created_at
		 FROM invocations WHERE plugin_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		pluginID, limit,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "list invocations of %s", pluginID)
	}
	defer rows.Close()

	var out []*Invocation
	for rows.Next() {
		inv := &Invocation{}
		var (
			success    int
			durationMs int64
		)
		err := rows.Scan(&inv.ID, &inv.PluginID, &inv.PluginVersion, &inv.DataType,
			&success, &inv.ErrorMessage, &durationMs, &inv.CreatedAt)
		if err != nil {
			return nil, err
		}

		inv.Success = success != 0
		inv.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats aggregates the log of pluginID. A plugin with no invocations gets
// zero stats.
func (r *InvocationRepository) Stats(ctx context.Context, pluginID string) (*InvocationStats, error) {
	var (
		stats     InvocationStats
		avgMillis float64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(AVG(duration_ms), 0)
		 FROM invocations WHERE plugin_id = ?`,
		pluginID,
	).Scan(&stats.Total, &stats.Succeeded, &avgMillis)
	if err != nil {
		return nil, errors.Wrapf(err, "invocation stats of %s", pluginID)
	}

	stats.Failed = stats.Total - stats.Succeeded
	stats.AvgDuration = time.Duration(avgMillis * float64(time.Millisecond))
	return &stats, nil
}
