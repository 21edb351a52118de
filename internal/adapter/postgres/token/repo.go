// Package token implements the allocation token ledger repository.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	postgres "github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/juniorpayne/registry-core/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func mapError(err error, key string) error {
	return postgres.MapError(err, "allocation token", key)
}

var columns = []string{
	"token", "type", "bound_domain_name", "status_schedule", "allowed_tlds",
	"allowed_registrar_ids", "discount_fraction", "discount_years",
	"discount_premiums", "renewal_price_behavior", "redemption_history_id",
	"created_at", "updated_at",
}

// Repo provides allocation token persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new allocation token repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns a token by its string value.
func (r *Repo) Get(ctx context.Context, tok string) (*domain.AllocationToken, error) {
	sqlStr, args, err := psql.Select(columns...).From("allocation_tokens").
		Where(sq.Eq{"token": tok}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	a, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(err, tok)
	}
	return a, nil
}

// GetForUpdate locks the token row for the enclosing transaction so a
// SINGLE_USE token cannot be redeemed twice concurrently.
func (r *Repo) GetForUpdate(ctx context.Context, tok string) (*domain.AllocationToken, error) {
	sqlStr, args, err := psql.Select(columns...).From("allocation_tokens").
		Where(sq.Eq{"token": tok}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	a, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(err, tok)
	}
	return a, nil
}

// Create inserts a new token.
func (r *Repo) Create(ctx context.Context, a *domain.AllocationToken) error {
	vals, err := values(a)
	if err != nil {
		return err
	}
	sqlStr, args, err := psql.Insert("allocation_tokens").Columns(columns...).Values(vals...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, a.Token)
	}
	return nil
}

// Update rewrites a token row (schedule install, redemption mark).
func (r *Repo) Update(ctx context.Context, a *domain.AllocationToken) error {
	vals, err := values(a)
	if err != nil {
		return err
	}
	update := psql.Update("allocation_tokens").Where(sq.Eq{"token": a.Token})
	for i, col := range columns {
		if col == "token" || col == "created_at" {
			continue
		}
		update = update.Set(col, vals[i])
	}
	update = update.Set("updated_at", time.Now().UTC())
	sqlStr, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapError(err, a.Token)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allocation token %s: %w", a.Token, domain.ErrNotFound)
	}
	return nil
}

type scheduleEntryJSON struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}

func values(a *domain.AllocationToken) ([]any, error) {
	entries := make([]scheduleEntryJSON, 0, a.StatusSchedule.Len())
	for _, tr := range a.StatusSchedule.All() {
		entries = append(entries, scheduleEntryJSON{Time: tr.Time, Status: string(tr.Value)})
	}
	scheduleRaw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal status schedule: %w", err)
	}
	return []any{
		a.Token, a.Type, a.BoundDomainName, scheduleRaw, a.AllowedTLDs,
		a.AllowedRegistrarIDs, a.DiscountFraction, a.DiscountYears,
		a.DiscountPremiums, a.RenewalPriceBehavior, a.RedemptionHistoryID,
		a.CreatedAt, a.UpdatedAt,
	}, nil
}

func scan(row pgx.Row) (*domain.AllocationToken, error) {
	var (
		a           domain.AllocationToken
		scheduleRaw []byte
		fraction    decimal.Decimal
	)
	err := row.Scan(
		&a.Token, &a.Type, &a.BoundDomainName, &scheduleRaw, &a.AllowedTLDs,
		&a.AllowedRegistrarIDs, &fraction, &a.DiscountYears,
		&a.DiscountPremiums, &a.RenewalPriceBehavior, &a.RedemptionHistoryID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.DiscountFraction = fraction

	var entries []scheduleEntryJSON
	if err := json.Unmarshal(scheduleRaw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal status schedule: %w", err)
	}
	if len(entries) > 0 {
		m := make(map[time.Time]domain.TokenStatus, len(entries))
		for _, e := range entries {
			m[e.Time] = domain.TokenStatus(e.Status)
		}
		schedule, err := domain.NewTimedTransitions(m)
		if err != nil {
			return nil, fmt.Errorf("rebuild status schedule: %w", err)
		}
		a.StatusSchedule = schedule
	}
	return &a, nil
}
