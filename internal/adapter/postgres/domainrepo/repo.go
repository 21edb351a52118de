// Package domainrepo implements the Domain aggregate repository using
// PostgreSQL. Scalar fields are columns; contacts, DS records, and transfer
// data are JSONB documents.
package domainrepo

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
	return postgres.MapError(err, "domain", key)
}

var domainColumns = []string{
	"repo_id", "name", "tld", "sponsor_id", "statuses",
	"creation_time", "expiration_time", "deletion_time", "auth_info_hash",
	"nameservers", "contacts", "ds_records", "transfer_data",
	"autorenew_id", "autorenew_poll_id", "package_token",
	"created_at", "updated_at",
}

// Repo provides domain persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new domain repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByName returns a domain by its fully qualified name.
func (r *Repo) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	return r.getWhere(ctx, sq.Eq{"name": name}, name, false)
}

// GetByNameForUpdate locks the domain row for the enclosing transaction.
func (r *Repo) GetByNameForUpdate(ctx context.Context, name string) (*domain.Domain, error) {
	return r.getWhere(ctx, sq.Eq{"name": name}, name, true)
}

// GetByRepoID returns a domain by its stable repository id.
func (r *Repo) GetByRepoID(ctx context.Context, repoID uuid.UUID) (*domain.Domain, error) {
	return r.getWhere(ctx, sq.Eq{"repo_id": repoID}, repoID.String(), false)
}

func (r *Repo) getWhere(ctx context.Context, pred sq.Eq, key string, forUpdate bool) (*domain.Domain, error) {
	q := psql.Select(domainColumns...).From("domains").Where(pred)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...)
	d, err := scanDomain(row)
	if err != nil {
		return nil, mapError(err, key)
	}
	return d, nil
}

// Create inserts a new domain aggregate.
func (r *Repo) Create(ctx context.Context, d *domain.Domain) error {
	vals, err := domainValues(d)
	if err != nil {
		return err
	}
	sqlStr, args, err := psql.Insert("domains").Columns(domainColumns...).Values(vals...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, d.Name)
	}
	return nil
}

// Update persists the full aggregate state. The caller owns all invariant
// checks; this is pure I/O.
func (r *Repo) Update(ctx context.Context, d *domain.Domain) error {
	vals, err := domainValues(d)
	if err != nil {
		return err
	}
	update := psql.Update("domains").Where(sq.Eq{"repo_id": d.RepoID})
	for i, col := range domainColumns {
		if col == "repo_id" || col == "created_at" {
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
		return mapError(err, d.Name)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotFound)
	}
	return nil
}

// FindDeletable returns names of PENDING_DELETE domains whose scheduled
// deletion time has passed. The selecting index may lag writes; callers
// re-check each candidate inside its own transaction.
func (r *Repo) FindDeletable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	sqlStr, args, err := psql.Select("name").From("domains").
		Where(sq.LtOrEq{"deletion_time": now}).
		Where("'PENDING_DELETE' = ANY(statuses)").
		OrderBy("deletion_time ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, "deletable")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan deletable domain: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

type dsRecordJSON struct {
	KeyTag     int    `json:"key_tag"`
	Algorithm  int    `json:"algorithm"`
	DigestType int    `json:"digest_type"`
	Digest     string `json:"digest"`
}

type transferDataJSON struct {
	Status                        string      `json:"status"`
	GainingRegistrarID            string      `json:"gaining_registrar_id"`
	LosingRegistrarID             string      `json:"losing_registrar_id"`
	TransferRequestTime           time.Time   `json:"transfer_request_time"`
	PendingTransferExpirationTime time.Time   `json:"pending_transfer_expiration_time"`
	TransferPeriodYears           int         `json:"transfer_period_years"`
	ServerApproveBillingEventID   *uuid.UUID  `json:"server_approve_billing_event_id,omitempty"`
	ServerApproveAutorenewID      *uuid.UUID  `json:"server_approve_autorenew_id,omitempty"`
	ServerApprovePollMessageIDs   []uuid.UUID `json:"server_approve_poll_message_ids,omitempty"`
}

func domainValues(d *domain.Domain) ([]any, error) {
	statuses := make([]string, 0, len(d.Statuses))
	for _, s := range d.Statuses.Sorted() {
		statuses = append(statuses, string(s))
	}

	contacts := make(map[string]string, len(d.Contacts))
	for role, id := range d.Contacts {
		contacts[string(role)] = id
	}
	contactsJSON, err := json.Marshal(contacts)
	if err != nil {
		return nil, fmt.Errorf("marshal contacts: %w", err)
	}

	dsRecords := make([]dsRecordJSON, 0, len(d.DSRecords))
	for _, rec := range d.DSRecords {
		dsRecords = append(dsRecords, dsRecordJSON(rec))
	}
	dsJSON, err := json.Marshal(dsRecords)
	if err != nil {
		return nil, fmt.Errorf("marshal ds records: %w", err)
	}

	var transferJSON []byte
	if d.TransferData != nil {
		td := d.TransferData
		transferJSON, err = json.Marshal(transferDataJSON{
			Status:                        string(td.Status),
			GainingRegistrarID:            td.GainingRegistrarID,
			LosingRegistrarID:             td.LosingRegistrarID,
			TransferRequestTime:           td.TransferRequestTime,
			PendingTransferExpirationTime: td.PendingTransferExpirationTime,
			TransferPeriodYears:           td.TransferPeriodYears,
			ServerApproveBillingEventID:   td.ServerApproveBillingEventID,
			ServerApproveAutorenewID:      td.ServerApproveAutorenewID,
			ServerApprovePollMessageIDs:   td.ServerApprovePollMessageIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal transfer data: %w", err)
		}
	}

	return []any{
		d.RepoID, d.Name, d.TLD, d.SponsorID, statuses,
		d.CreationTime, d.ExpirationTime, d.DeletionTime, d.AuthInfoHash,
		d.Nameservers, contactsJSON, dsJSON, transferJSON,
		d.AutorenewID, d.AutorenewPollID, d.PackageTokenID,
		d.CreatedAt, d.UpdatedAt,
	}, nil
}

func scanDomain(row pgx.Row) (*domain.Domain, error) {
	var (
		d           domain.Domain
		statuses    []string
		contactsRaw []byte
		dsRaw       []byte
		transferRaw []byte
	)
	err := row.Scan(
		&d.RepoID, &d.Name, &d.TLD, &d.SponsorID, &statuses,
		&d.CreationTime, &d.ExpirationTime, &d.DeletionTime, &d.AuthInfoHash,
		&d.Nameservers, &contactsRaw, &dsRaw, &transferRaw,
		&d.AutorenewID, &d.AutorenewPollID, &d.PackageTokenID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Statuses = domain.NewStatusSet()
	for _, s := range statuses {
		d.Statuses.Add(domain.StatusValue(s))
	}

	var contacts map[string]string
	if err := json.Unmarshal(contactsRaw, &contacts); err != nil {
		return nil, fmt.Errorf("unmarshal contacts: %w", err)
	}
	d.Contacts = make(map[domain.ContactRole]string, len(contacts))
	for role, id := range contacts {
		d.Contacts[domain.ContactRole(role)] = id
	}

	var dsRecords []dsRecordJSON
	if err := json.Unmarshal(dsRaw, &dsRecords); err != nil {
		return nil, fmt.Errorf("unmarshal ds records: %w", err)
	}
	for _, rec := range dsRecords {
		d.DSRecords = append(d.DSRecords, domain.DSRecord(rec))
	}

	if len(transferRaw) > 0 {
		var td transferDataJSON
		if err := json.Unmarshal(transferRaw, &td); err != nil {
			return nil, fmt.Errorf("unmarshal transfer data: %w", err)
		}
		d.TransferData = &domain.TransferData{
			Status:                        domain.TransferStatus(td.Status),
			GainingRegistrarID:            td.GainingRegistrarID,
			LosingRegistrarID:             td.LosingRegistrarID,
			TransferRequestTime:           td.TransferRequestTime,
			PendingTransferExpirationTime: td.PendingTransferExpirationTime,
			TransferPeriodYears:           td.TransferPeriodYears,
			ServerApproveBillingEventID:   td.ServerApproveBillingEventID,
			ServerApproveAutorenewID:      td.ServerApproveAutorenewID,
			ServerApprovePollMessageIDs:   td.ServerApprovePollMessageIDs,
		}
	}

	return &d, nil
}
