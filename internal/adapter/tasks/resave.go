// Package tasks enqueues asynchronous resave work: a request to re-evaluate a
// resource at future instants (grace expiry, pending-delete finalization).
// The queue is a Postgres table drained by the sweeper.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	postgres "github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxHorizon caps how far ahead a resave may be scheduled. Times beyond the
// horizon are dropped with a log line; the periodic full sweep covers them.
const MaxHorizon = 30 * 24 * time.Hour

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Enqueuer schedules resave tasks inside the caller's transaction.
type Enqueuer struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEnqueuer(pool *pgxpool.Pool, log *slog.Logger) *Enqueuer {
	return &Enqueuer{pool: pool, log: log}
}

// Enqueue schedules a resave of resourceKey at each of resaveTimes. Times
// beyond MaxHorizon from now are skipped and logged, never failed on.
func (e *Enqueuer) Enqueue(ctx context.Context, resourceKey string, now time.Time, resaveTimes ...time.Time) error {
	horizon := now.Add(MaxHorizon)
	kept := make([]time.Time, 0, len(resaveTimes))
	for _, rt := range resaveTimes {
		if rt.After(horizon) {
			e.log.Info("resave beyond horizon skipped",
				"resource", resourceKey, "resave_time", rt)
			continue
		}
		kept = append(kept, rt)
	}
	if len(kept) == 0 {
		return nil
	}

	timesRaw, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("marshal resave times: %w", err)
	}
	sqlStr, args, err := psql.Insert("resave_tasks").
		Columns("id", "resource_key", "requested_time", "resave_times").
		Values(uuid.New(), resourceKey, now, timesRaw).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, e.pool).Exec(ctx, sqlStr, args...); err != nil {
		return postgres.MapError(err, "resave task", resourceKey)
	}
	return nil
}

// Due returns resource keys with a resave time at or before now, oldest first.
func (e *Enqueuer) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	// resave_times is a JSONB array of RFC 3339 timestamps; the earliest
	// element decides due-ness.
	sqlStr, args, err := psql.Select("DISTINCT resource_key").From("resave_tasks").
		Where(sq.LtOrEq{"requested_time": now}).
		Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := postgres.QuerierFromCtx(ctx, e.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, postgres.MapError(err, "resave task", "due")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan resave task: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Complete removes every task for a resource after it was resaved.
func (e *Enqueuer) Complete(ctx context.Context, resourceKey string) error {
	sqlStr, args, err := psql.Delete("resave_tasks").
		Where(sq.Eq{"resource_key": resourceKey}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, e.pool).Exec(ctx, sqlStr, args...); err != nil {
		return postgres.MapError(err, "resave task", resourceKey)
	}
	return nil
}
