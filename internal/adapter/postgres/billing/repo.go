// Package billing implements the append-only billing ledger repository.
package billing

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	postgres "github.com/juniorpayne/registry-core/internal/adapter/postgres"
	"github.com/juniorpayne/registry-core/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func mapError(err error, key string) error {
	return postgres.MapError(err, "billing event", key)
}

var columns = []string{
	"id", "type", "reason", "registrar_id", "domain_repo_id", "domain_name",
	"event_time", "history_entry_id", "cost", "currency", "period_years",
	"billing_time", "recurrence_end_time", "renewal_price_behavior",
	"renewal_price", "cancelled_event_id",
}

// Repo provides billing event persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new billing event repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create appends a ledger entry.
func (r *Repo) Create(ctx context.Context, e *domain.BillingEvent) error {
	sqlStr, args, err := psql.Insert("billing_events").Columns(columns...).
		Values(values(e)...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, e.ID.String())
	}
	return nil
}

// Get returns a ledger entry by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error) {
	sqlStr, args, err := psql.Select(columns...).From("billing_events").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	e, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(err, id.String())
	}
	return e, nil
}

// UpdateRecurrenceEnd persists a Recurring event's closed end time. The only
// mutable ledger field; everything else is immutable once written.
func (r *Repo) UpdateRecurrenceEnd(ctx context.Context, id uuid.UUID, endTime time.Time) error {
	sqlStr, args, err := psql.Update("billing_events").
		Set("recurrence_end_time", endTime).
		Where(sq.Eq{"id": id, "type": domain.BillingRecurring}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapError(err, id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("billing event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AdvanceEventTime moves a Recurring event's next firing forward after an
// autorenew occurrence was expanded into a one-time charge.
func (r *Repo) AdvanceEventTime(ctx context.Context, id uuid.UUID, eventTime time.Time) error {
	sqlStr, args, err := psql.Update("billing_events").
		Set("event_time", eventTime).
		Where(sq.Eq{"id": id, "type": domain.BillingRecurring}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapError(err, id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("billing event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a speculative server-approve entry that was never applied.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	sqlStr, args, err := psql.Delete("billing_events").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, id.String())
	}
	return nil
}

// ListByDomain returns all ledger entries for a domain ordered by event time.
func (r *Repo) ListByDomain(ctx context.Context, domainRepoID uuid.UUID) ([]*domain.BillingEvent, error) {
	sqlStr, args, err := psql.Select(columns...).From("billing_events").
		Where(sq.Eq{"domain_repo_id": domainRepoID}).
		OrderBy("event_time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.list(ctx, sqlStr, args)
}

// FindDueRecurrings returns open Recurring events whose next firing is at or
// before now, for autorenew expansion.
func (r *Repo) FindDueRecurrings(ctx context.Context, now time.Time, limit int) ([]*domain.BillingEvent, error) {
	sqlStr, args, err := psql.Select(columns...).From("billing_events").
		Where(sq.Eq{"type": domain.BillingRecurring}).
		Where(sq.LtOrEq{"event_time": now}).
		Where(sq.Gt{"recurrence_end_time": now}).
		OrderBy("event_time ASC").
		Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.list(ctx, sqlStr, args)
}

func (r *Repo) list(ctx context.Context, sqlStr string, args []any) ([]*domain.BillingEvent, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, "list")
	}
	defer rows.Close()

	var events []*domain.BillingEvent
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan billing event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func values(e *domain.BillingEvent) []any {
	var cost, renewalPrice *decimal.Decimal
	var currency *string
	if e.Cost != nil {
		cost = &e.Cost.Amount
		currency = &e.Cost.Currency
	}
	if e.RenewalPrice != nil {
		renewalPrice = &e.RenewalPrice.Amount
		if currency == nil {
			currency = &e.RenewalPrice.Currency
		}
	}
	var billingTime, recurrenceEnd *time.Time
	if !e.BillingTime.IsZero() {
		billingTime = &e.BillingTime
	}
	if !e.RecurrenceEndTime.IsZero() {
		recurrenceEnd = &e.RecurrenceEndTime
	}
	var behavior *string
	if e.RenewalPriceBehavior != "" {
		b := string(e.RenewalPriceBehavior)
		behavior = &b
	}
	return []any{
		e.ID, e.Type, e.Reason, e.RegistrarID, e.DomainRepoID, e.DomainName,
		e.EventTime, e.HistoryEntryID, cost, currency, e.PeriodYears,
		billingTime, recurrenceEnd, behavior, renewalPrice, e.CancelledEventID,
	}
}

func scan(row pgx.Row) (*domain.BillingEvent, error) {
	var (
		e             domain.BillingEvent
		cost          *decimal.Decimal
		renewalPrice  *decimal.Decimal
		currency      *string
		billingTime   *time.Time
		recurrenceEnd *time.Time
		behavior      *string
	)
	err := row.Scan(
		&e.ID, &e.Type, &e.Reason, &e.RegistrarID, &e.DomainRepoID, &e.DomainName,
		&e.EventTime, &e.HistoryEntryID, &cost, &currency, &e.PeriodYears,
		&billingTime, &recurrenceEnd, &behavior, &renewalPrice, &e.CancelledEventID,
	)
	if err != nil {
		return nil, err
	}
	if cost != nil && currency != nil {
		e.Cost = &domain.Money{Amount: *cost, Currency: *currency}
	}
	if renewalPrice != nil && currency != nil {
		e.RenewalPrice = &domain.Money{Amount: *renewalPrice, Currency: *currency}
	}
	if billingTime != nil {
		e.BillingTime = *billingTime
	}
	if recurrenceEnd != nil {
		e.RecurrenceEndTime = *recurrenceEnd
	}
	if behavior != nil {
		e.RenewalPriceBehavior = domain.RenewalPriceBehavior(*behavior)
	}
	return &e, nil
}
