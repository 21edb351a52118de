// Package pricelist implements the premium and reserved list repository.
// Both lists are keyed by (tld, label); the reserved list may hold several
// tiers for one label.
package pricelist

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	postgres "github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/juniorpayne/registry-core/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func mapError(err error, key string) error {
	return postgres.MapError(err, "price list entry", key)
}

// Repo provides premium and reserved list persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new price list repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetPremium returns the premium price override for a label, or nil when the
// label is not premium. Currency comes from the TLD policy row.
func (r *Repo) GetPremium(ctx context.Context, tld, label, currency string) (*domain.PremiumEntry, error) {
	sqlStr, args, err := psql.Select("create_price", "renew_price").
		From("premium_entries").
		Where(sq.Eq{"tld": tld, "label": label}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var createPrice, renewPrice decimal.Decimal
	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...)
	if err := row.Scan(&createPrice, &renewPrice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, tld+"/"+label)
	}
	return &domain.PremiumEntry{
		TLD:         tld,
		Label:       label,
		CreatePrice: domain.Money{Amount: createPrice, Currency: currency},
		RenewPrice:  domain.Money{Amount: renewPrice, Currency: currency},
	}, nil
}

// UpsertPremium installs or replaces a premium price override.
func (r *Repo) UpsertPremium(ctx context.Context, e *domain.PremiumEntry) error {
	sqlStr, args, err := psql.Insert("premium_entries").
		Columns("tld", "label", "create_price", "renew_price").
		Values(e.TLD, e.Label, e.CreatePrice.Amount, e.RenewPrice.Amount).
		Suffix(`ON CONFLICT (tld, label) DO UPDATE SET
			create_price = EXCLUDED.create_price,
			renew_price = EXCLUDED.renew_price`).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, e.TLD+"/"+e.Label)
	}
	return nil
}

// ListReserved returns every reserved-list tier covering a label.
func (r *Repo) ListReserved(ctx context.Context, tld, label string) ([]domain.ReservedEntry, error) {
	sqlStr, args, err := psql.Select("tld", "label", "reservation_type", "allow_premium").
		From("reserved_entries").
		Where(sq.Eq{"tld": tld, "label": label}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, tld+"/"+label)
	}
	defer rows.Close()

	var entries []domain.ReservedEntry
	for rows.Next() {
		var e domain.ReservedEntry
		if err := rows.Scan(&e.TLD, &e.Label, &e.Type, &e.AllowPremium); err != nil {
			return nil, fmt.Errorf("scan reserved entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertReserved installs or replaces one reserved-list tier.
func (r *Repo) UpsertReserved(ctx context.Context, e *domain.ReservedEntry) error {
	sqlStr, args, err := psql.Insert("reserved_entries").
		Columns("tld", "label", "reservation_type", "allow_premium").
		Values(e.TLD, e.Label, e.Type, e.AllowPremium).
		Suffix(`ON CONFLICT (tld, label, reservation_type) DO UPDATE SET
			allow_premium = EXCLUDED.allow_premium`).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, e.TLD+"/"+e.Label)
	}
	return nil
}
