// Package graceperiod implements the grace period repository.
package graceperiod

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/juniorpayne/registry-core/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func mapError(err error, key string) error {
	return postgres.MapError(err, "grace period", key)
}

var columns = []string{
	"id", "type", "domain_repo_id", "registrar_id", "expiration_time", "billing_event_id",
}

// Repo provides grace period persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new grace period repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create opens a grace period.
func (r *Repo) Create(ctx context.Context, g *domain.GracePeriod) error {
	sqlStr, args, err := psql.Insert("grace_periods").Columns(columns...).
		Values(g.ID, g.Type, g.DomainRepoID, g.RegistrarID, g.ExpirationTime, g.BillingEventID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, g.ID.String())
	}
	return nil
}

// Delete removes a grace period that expired or was superseded.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	sqlStr, args, err := psql.Delete("grace_periods").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, id.String())
	}
	return nil
}

// DeleteByDomain removes every grace period of a domain.
func (r *Repo) DeleteByDomain(ctx context.Context, domainRepoID uuid.UUID) error {
	sqlStr, args, err := psql.Delete("grace_periods").
		Where(sq.Eq{"domain_repo_id": domainRepoID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, domainRepoID.String())
	}
	return nil
}

// ListActiveByDomain returns grace periods of a domain still open as of now.
// Rows whose expiration passed are excluded from the projection even before
// physical cleanup.
func (r *Repo) ListActiveByDomain(ctx context.Context, domainRepoID uuid.UUID, now time.Time) ([]*domain.GracePeriod, error) {
	sqlStr, args, err := psql.Select(columns...).From("grace_periods").
		Where(sq.Eq{"domain_repo_id": domainRepoID}).
		Where(sq.Gt{"expiration_time": now}).
		OrderBy("expiration_time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, domainRepoID.String())
	}
	defer rows.Close()

	var periods []*domain.GracePeriod
	for rows.Next() {
		g, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grace period: %w", err)
		}
		periods = append(periods, g)
	}
	return periods, rows.Err()
}

func scan(row pgx.Row) (*domain.GracePeriod, error) {
	var g domain.GracePeriod
	err := row.Scan(&g.ID, &g.Type, &g.DomainRepoID, &g.RegistrarID,
		&g.ExpirationTime, &g.BillingEventID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
