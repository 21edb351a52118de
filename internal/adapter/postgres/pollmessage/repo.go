// Package pollmessage implements the per-registrar poll message queue
// repository. A message exists until acknowledged; visibility is a pure
// function of event time.
package pollmessage

import (
	"context"
	"encoding/json"
	"errors"
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
	return postgres.MapError(err, "poll message", key)
}

var columns = []string{
	"id", "type", "registrar_id", "domain_repo_id", "domain_name", "event_time",
	"message", "history_entry_id", "autorenew_end_time", "recurring_event_id",
	"transfer_payload", "pending_action_payload",
}

// Repo provides poll message persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new poll message repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create enqueues a message.
func (r *Repo) Create(ctx context.Context, m *domain.PollMessage) error {
	vals, err := values(m)
	if err != nil {
		return err
	}
	sqlStr, args, err := psql.Insert("poll_messages").Columns(columns...).Values(vals...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, m.ID.String())
	}
	return nil
}

// Get returns a message by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*domain.PollMessage, error) {
	sqlStr, args, err := psql.Select(columns...).From("poll_messages").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	m, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(err, id.String())
	}
	return m, nil
}

// GetNextVisible returns the earliest undelivered message with event time at
// or before asOf, or nil when the queue is empty.
func (r *Repo) GetNextVisible(ctx context.Context, registrarID string, asOf time.Time) (*domain.PollMessage, error) {
	sqlStr, args, err := psql.Select(columns...).From("poll_messages").
		Where(sq.Eq{"registrar_id": registrarID}).
		Where(sq.LtOrEq{"event_time": asOf}).
		OrderBy("event_time ASC", "id ASC").
		Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	m, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, registrarID)
	}
	return m, nil
}

// Update rewrites a message row; used to advance an autorenew occurrence or
// close its end time.
func (r *Repo) Update(ctx context.Context, m *domain.PollMessage) error {
	vals, err := values(m)
	if err != nil {
		return err
	}
	update := psql.Update("poll_messages").Where(sq.Eq{"id": m.ID})
	for i, col := range columns {
		if col == "id" {
			continue
		}
		update = update.Set(col, vals[i])
	}
	sqlStr, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapError(err, m.ID.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("poll message %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an acknowledged or retracted message.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	sqlStr, args, err := psql.Delete("poll_messages").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, id.String())
	}
	return nil
}

func values(m *domain.PollMessage) ([]any, error) {
	var transferRaw, pendingRaw []byte
	var err error
	if m.Transfer != nil {
		if transferRaw, err = json.Marshal(m.Transfer); err != nil {
			return nil, fmt.Errorf("marshal transfer payload: %w", err)
		}
	}
	if m.PendingAction != nil {
		if pendingRaw, err = json.Marshal(m.PendingAction); err != nil {
			return nil, fmt.Errorf("marshal pending action payload: %w", err)
		}
	}
	var autorenewEnd *time.Time
	if !m.AutorenewEndTime.IsZero() {
		autorenewEnd = &m.AutorenewEndTime
	}
	return []any{
		m.ID, m.Type, m.RegistrarID, m.DomainRepoID, m.DomainName, m.EventTime,
		m.Message, m.HistoryEntryID, autorenewEnd, m.RecurringEventID,
		transferRaw, pendingRaw,
	}, nil
}

func scan(row pgx.Row) (*domain.PollMessage, error) {
	var (
		m            domain.PollMessage
		autorenewEnd *time.Time
		transferRaw  []byte
		pendingRaw   []byte
	)
	err := row.Scan(
		&m.ID, &m.Type, &m.RegistrarID, &m.DomainRepoID, &m.DomainName, &m.EventTime,
		&m.Message, &m.HistoryEntryID, &autorenewEnd, &m.RecurringEventID,
		&transferRaw, &pendingRaw,
	)
	if err != nil {
		return nil, err
	}
	if autorenewEnd != nil {
		m.AutorenewEndTime = *autorenewEnd
	}
	if len(transferRaw) > 0 {
		m.Transfer = &domain.TransferResponse{}
		if err := json.Unmarshal(transferRaw, m.Transfer); err != nil {
			return nil, fmt.Errorf("unmarshal transfer payload: %w", err)
		}
	}
	if len(pendingRaw) > 0 {
		m.PendingAction = &domain.PendingActionResponse{}
		if err := json.Unmarshal(pendingRaw, m.PendingAction); err != nil {
			return nil, fmt.Errorf("unmarshal pending action payload: %w", err)
		}
	}
	return &m, nil
}
