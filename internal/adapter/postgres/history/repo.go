// Package history implements the immutable history entry repository.
package history

import (
	"context"
	"encoding/json"
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
	return postgres.MapError(err, "history entry", key)
}

var columns = []string{
	"id", "type", "domain_repo_id", "domain_name", "registrar_id",
	"modification_time", "reason", "by_superuser", "records",
}

// Repo provides history entry persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new history repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type recordJSON struct {
	TLD           string    `json:"tld"`
	ReportingTime time.Time `json:"reporting_time"`
	Field         string    `json:"field"`
	PeriodYears   int       `json:"period_years,omitempty"`
	Amount        int       `json:"amount"`
}

// Create appends an audit record. Entries are never updated or deleted.
func (r *Repo) Create(ctx context.Context, h *domain.HistoryEntry) error {
	records := make([]recordJSON, 0, len(h.Records))
	for _, rec := range h.Records {
		records = append(records, recordJSON{
			TLD:           rec.TLD,
			ReportingTime: rec.ReportingTime,
			Field:         string(rec.Field),
			PeriodYears:   rec.PeriodYears,
			Amount:        rec.Amount,
		})
	}
	recordsRaw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal transaction records: %w", err)
	}

	sqlStr, args, err := psql.Insert("history_entries").Columns(columns...).
		Values(h.ID, h.Type, h.DomainRepoID, h.DomainName, h.RegistrarID,
			h.ModificationTime, h.Reason, h.BySuperuser, recordsRaw).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, h.ID.String())
	}
	return nil
}

// ListByDomain returns a domain's history ordered by modification time, the
// replay order for reconstructing state as of any instant.
func (r *Repo) ListByDomain(ctx context.Context, domainRepoID uuid.UUID) ([]*domain.HistoryEntry, error) {
	sqlStr, args, err := psql.Select(columns...).From("history_entries").
		Where(sq.Eq{"domain_repo_id": domainRepoID}).
		OrderBy("modification_time ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, domainRepoID.String())
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func scan(row pgx.Row) (*domain.HistoryEntry, error) {
	var (
		h          domain.HistoryEntry
		recordsRaw []byte
	)
	err := row.Scan(&h.ID, &h.Type, &h.DomainRepoID, &h.DomainName, &h.RegistrarID,
		&h.ModificationTime, &h.Reason, &h.BySuperuser, &recordsRaw)
	if err != nil {
		return nil, err
	}
	var records []recordJSON
	if err := json.Unmarshal(recordsRaw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal transaction records: %w", err)
	}
	for _, rec := range records {
		h.Records = append(h.Records, domain.TransactionRecord{
			TLD:           rec.TLD,
			ReportingTime: rec.ReportingTime,
			Field:         domain.TransactionReportField(rec.Field),
			PeriodYears:   rec.PeriodYears,
			Amount:        rec.Amount,
		})
	}
	return &h, nil
}
