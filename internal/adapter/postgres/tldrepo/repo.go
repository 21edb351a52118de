// Package tldrepo implements the per-TLD registry policy repository. Grace
// durations are stored as whole seconds; cost and phase schedules as JSONB.
package tldrepo

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
	return postgres.MapError(err, "tld", key)
}

var columns = []string{
	"name", "currency", "add_grace_period", "renew_grace_period",
	"transfer_grace_period", "autorenew_grace_period", "redemption_grace_period",
	"pending_delete_length", "automatic_transfer_length",
	"create_costs", "renew_costs", "eap_fees", "phase_schedule",
	"restore_cost", "server_status_cost", "created_at", "updated_at",
}

// Repo provides TLD policy persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new TLD repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns the policy for a TLD, or ErrNotFound for an unknown TLD.
func (r *Repo) Get(ctx context.Context, name string) (*domain.TLD, error) {
	sqlStr, args, err := psql.Select(columns...).From("tlds").
		Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	t, err := scan(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(err, name)
	}
	return t, nil
}

// Upsert installs or replaces a TLD policy.
func (r *Repo) Upsert(ctx context.Context, t *domain.TLD) error {
	vals, err := values(t)
	if err != nil {
		return err
	}
	builder := psql.Insert("tlds").Columns(columns...).Values(vals...).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			currency = EXCLUDED.currency,
			add_grace_period = EXCLUDED.add_grace_period,
			renew_grace_period = EXCLUDED.renew_grace_period,
			transfer_grace_period = EXCLUDED.transfer_grace_period,
			autorenew_grace_period = EXCLUDED.autorenew_grace_period,
			redemption_grace_period = EXCLUDED.redemption_grace_period,
			pending_delete_length = EXCLUDED.pending_delete_length,
			automatic_transfer_length = EXCLUDED.automatic_transfer_length,
			create_costs = EXCLUDED.create_costs,
			renew_costs = EXCLUDED.renew_costs,
			eap_fees = EXCLUDED.eap_fees,
			phase_schedule = EXCLUDED.phase_schedule,
			restore_cost = EXCLUDED.restore_cost,
			server_status_cost = EXCLUDED.server_status_cost,
			updated_at = now()`)
	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return mapError(err, t.Name)
	}
	return nil
}

type costEntryJSON struct {
	Time   time.Time       `json:"time"`
	Amount decimal.Decimal `json:"amount"`
}

type phaseEntryJSON struct {
	Time  time.Time `json:"time"`
	Phase string    `json:"phase"`
}

func marshalCosts(tt domain.TimedTransitions[domain.Money]) ([]byte, error) {
	entries := make([]costEntryJSON, 0, tt.Len())
	for _, tr := range tt.All() {
		entries = append(entries, costEntryJSON{Time: tr.Time, Amount: tr.Value.Amount})
	}
	return json.Marshal(entries)
}

func unmarshalCosts(raw []byte, currency string) (domain.TimedTransitions[domain.Money], error) {
	var entries []costEntryJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return domain.TimedTransitions[domain.Money]{}, err
	}
	if len(entries) == 0 {
		return domain.TimedTransitions[domain.Money]{}, nil
	}
	m := make(map[time.Time]domain.Money, len(entries))
	for _, e := range entries {
		m[e.Time] = domain.Money{Amount: e.Amount, Currency: currency}
	}
	return domain.NewTimedTransitions(m)
}

func values(t *domain.TLD) ([]any, error) {
	createRaw, err := marshalCosts(t.CreateCosts)
	if err != nil {
		return nil, fmt.Errorf("marshal create costs: %w", err)
	}
	renewRaw, err := marshalCosts(t.RenewCosts)
	if err != nil {
		return nil, fmt.Errorf("marshal renew costs: %w", err)
	}
	eapRaw, err := marshalCosts(t.EAPFees)
	if err != nil {
		return nil, fmt.Errorf("marshal eap fees: %w", err)
	}
	phases := make([]phaseEntryJSON, 0, t.PhaseSchedule.Len())
	for _, tr := range t.PhaseSchedule.All() {
		phases = append(phases, phaseEntryJSON{Time: tr.Time, Phase: string(tr.Value)})
	}
	phaseRaw, err := json.Marshal(phases)
	if err != nil {
		return nil, fmt.Errorf("marshal phase schedule: %w", err)
	}
	return []any{
		t.Name, t.Currency,
		int64(t.AddGracePeriod.Seconds()), int64(t.RenewGracePeriod.Seconds()),
		int64(t.TransferGracePeriod.Seconds()), int64(t.AutorenewGracePeriod.Seconds()),
		int64(t.RedemptionGracePeriod.Seconds()), int64(t.PendingDeleteLength.Seconds()),
		int64(t.AutomaticTransferLength.Seconds()),
		createRaw, renewRaw, eapRaw, phaseRaw,
		t.RestoreCost.Amount, t.ServerStatusCost.Amount,
		t.CreatedAt, t.UpdatedAt,
	}, nil
}

func scan(row pgx.Row) (*domain.TLD, error) {
	var (
		t                                   domain.TLD
		addSec, renewSec, transferSec       int64
		autorenewSec, redemptionSec         int64
		pendingDeleteSec, autoTransferSec   int64
		createRaw, renewRaw, eapRaw         []byte
		phaseRaw                            []byte
		restoreAmount, serverStatusAmount   decimal.Decimal
	)
	err := row.Scan(
		&t.Name, &t.Currency, &addSec, &renewSec,
		&transferSec, &autorenewSec, &redemptionSec,
		&pendingDeleteSec, &autoTransferSec,
		&createRaw, &renewRaw, &eapRaw, &phaseRaw,
		&restoreAmount, &serverStatusAmount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AddGracePeriod = time.Duration(addSec) * time.Second
	t.RenewGracePeriod = time.Duration(renewSec) * time.Second
	t.TransferGracePeriod = time.Duration(transferSec) * time.Second
	t.AutorenewGracePeriod = time.Duration(autorenewSec) * time.Second
	t.RedemptionGracePeriod = time.Duration(redemptionSec) * time.Second
	t.PendingDeleteLength = time.Duration(pendingDeleteSec) * time.Second
	t.AutomaticTransferLength = time.Duration(autoTransferSec) * time.Second
	t.RestoreCost = domain.Money{Amount: restoreAmount, Currency: t.Currency}
	t.ServerStatusCost = domain.Money{Amount: serverStatusAmount, Currency: t.Currency}

	if t.CreateCosts, err = unmarshalCosts(createRaw, t.Currency); err != nil {
		return nil, fmt.Errorf("unmarshal create costs: %w", err)
	}
	if t.RenewCosts, err = unmarshalCosts(renewRaw, t.Currency); err != nil {
		return nil, fmt.Errorf("unmarshal renew costs: %w", err)
	}
	if t.EAPFees, err = unmarshalCosts(eapRaw, t.Currency); err != nil {
		return nil, fmt.Errorf("unmarshal eap fees: %w", err)
	}

	var phases []phaseEntryJSON
	if err := json.Unmarshal(phaseRaw, &phases); err != nil {
		return nil, fmt.Errorf("unmarshal phase schedule: %w", err)
	}
	if len(phases) > 0 {
		m := make(map[time.Time]domain.TLDPhase, len(phases))
		for _, p := range phases {
			m[p.Time] = domain.TLDPhase(p.Phase)
		}
		if t.PhaseSchedule, err = domain.NewTimedTransitions(m); err != nil {
			return nil, fmt.Errorf("rebuild phase schedule: %w", err)
		}
	}
	return &t, nil
}
