package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedTLD creates a TLD policy with standard five-day grace periods, a flat
// cost schedule since StartOfTime, and the GENERAL_AVAILABILITY phase.
// Returns the filled domain.TLD.
func SeedTLD(t *testing.T, pool *pgxpool.Pool) domain.TLD {
	t.Helper()
	ctx := context.Background()

	name := "tld" + uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	tld := domain.TLD{
		Name:                    name,
		Currency:                "USD",
		AddGracePeriod:          5 * 24 * time.Hour,
		RenewGracePeriod:        5 * 24 * time.Hour,
		TransferGracePeriod:     5 * 24 * time.Hour,
		AutorenewGracePeriod:    45 * 24 * time.Hour,
		RedemptionGracePeriod:   30 * 24 * time.Hour,
		PendingDeleteLength:     5 * 24 * time.Hour,
		AutomaticTransferLength: 5 * 24 * time.Hour,
		RestoreCost:             domain.NewMoney("17.00", "USD"),
		ServerStatusCost:        domain.NewMoney("19.00", "USD"),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	var err error
	costs := map[time.Time]domain.Money{domain.StartOfTime: domain.NewMoney("10.00", "USD")}
	if tld.CreateCosts, err = domain.NewTimedTransitions(costs); err != nil {
		t.Fatalf("testhelper: SeedTLD create costs: %v", err)
	}
	renew := map[time.Time]domain.Money{domain.StartOfTime: domain.NewMoney("10.00", "USD")}
	if tld.RenewCosts, err = domain.NewTimedTransitions(renew); err != nil {
		t.Fatalf("testhelper: SeedTLD renew costs: %v", err)
	}
	phases := map[time.Time]domain.TLDPhase{domain.StartOfTime: domain.PhaseGeneralAvailability}
	if tld.PhaseSchedule, err = domain.NewTimedTransitions(phases); err != nil {
		t.Fatalf("testhelper: SeedTLD phase schedule: %v", err)
	}

	scheduleJSON := `[{"time":"0001-01-01T00:00:00Z","amount":"10"}]`
	phaseJSON := `[{"time":"0001-01-01T00:00:00Z","phase":"GENERAL_AVAILABILITY"}]`

	_, err = pool.Exec(ctx,
		`INSERT INTO tlds (name, currency, add_grace_period, renew_grace_period,
		     transfer_grace_period, autorenew_grace_period, redemption_grace_period,
		     pending_delete_length, automatic_transfer_length,
		     create_costs, renew_costs, eap_fees, phase_schedule,
		     restore_cost, server_status_cost, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '[]', $12, $13, $14, $15, $16)`,
		tld.Name, tld.Currency,
		int64(tld.AddGracePeriod.Seconds()), int64(tld.RenewGracePeriod.Seconds()),
		int64(tld.TransferGracePeriod.Seconds()), int64(tld.AutorenewGracePeriod.Seconds()),
		int64(tld.RedemptionGracePeriod.Seconds()), int64(tld.PendingDeleteLength.Seconds()),
		int64(tld.AutomaticTransferLength.Seconds()),
		scheduleJSON, scheduleJSON, phaseJSON,
		tld.RestoreCost.Amount, tld.ServerStatusCost.Amount, tld.CreatedAt, tld.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedTLD insert: %v", err)
	}

	return tld
}

// SeedDomain creates an active domain under the given TLD, expiring one year
// from now, sponsored by registrarID. Returns the filled domain.Domain.
func SeedDomain(t *testing.T, pool *pgxpool.Pool, tld, registrarID string) domain.Domain {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	d := domain.Domain{
		RepoID:         uuid.New(),
		Name:           "example-" + uniqueSuffix() + "." + tld,
		TLD:            tld,
		SponsorID:      registrarID,
		Statuses:       domain.NewStatusSet(domain.StatusOK),
		CreationTime:   now.AddDate(-1, 0, 0),
		ExpirationTime: now.AddDate(1, 0, 0),
		Nameservers:    []string{"ns1.example.net", "ns2.example.net"},
		Contacts: map[domain.ContactRole]string{
			domain.ContactRoleRegistrant: "contact-reg",
			domain.ContactRoleAdmin:      "contact-admin",
			domain.ContactRoleTech:       "contact-tech",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO domains (repo_id, name, tld, sponsor_id, statuses, creation_time,
		     expiration_time, nameservers, contacts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		     '{"REGISTRANT":"contact-reg","ADMIN":"contact-admin","TECH":"contact-tech"}',
		     $9, $10)`,
		d.RepoID, d.Name, d.TLD, d.SponsorID, []string{"OK"}, d.CreationTime,
		d.ExpirationTime, d.Nameservers, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedDomain insert: %v", err)
	}

	return d
}

// SeedHistoryEntry creates a minimal audit record for a domain, needed to
// satisfy foreign keys on billing and poll rows.
func SeedHistoryEntry(t *testing.T, pool *pgxpool.Pool, d domain.Domain) domain.HistoryEntry {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	h := domain.HistoryEntry{
		ID:               uuid.New(),
		Type:             domain.HistoryDomainRenew,
		DomainRepoID:     d.RepoID,
		DomainName:       d.Name,
		RegistrarID:      d.SponsorID,
		ModificationTime: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO history_entries (id, type, domain_repo_id, domain_name, registrar_id, modification_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.Type, h.DomainRepoID, h.DomainName, h.RegistrarID, h.ModificationTime,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedHistoryEntry insert: %v", err)
	}

	return h
}

// SeedOneTimeBilling creates a billed renew event tied to the history entry.
func SeedOneTimeBilling(t *testing.T, pool *pgxpool.Pool, d domain.Domain, h domain.HistoryEntry) domain.BillingEvent {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	cost := domain.Money{Amount: decimal.RequireFromString("10.00"), Currency: "USD"}
	e := domain.BillingEvent{
		ID:             uuid.New(),
		Type:           domain.BillingOneTime,
		Reason:         domain.ReasonRenew,
		RegistrarID:    d.SponsorID,
		DomainRepoID:   d.RepoID,
		DomainName:     d.Name,
		EventTime:      now,
		HistoryEntryID: h.ID,
		Cost:           &cost,
		PeriodYears:    1,
		BillingTime:    now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO billing_events (id, type, reason, registrar_id, domain_repo_id,
		     domain_name, event_time, history_entry_id, cost, currency, period_years, billing_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Type, e.Reason, e.RegistrarID, e.DomainRepoID,
		e.DomainName, e.EventTime, e.HistoryEntryID, e.Cost.Amount, e.Cost.Currency,
		e.PeriodYears, e.BillingTime,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedOneTimeBilling insert: %v", err)
	}

	return e
}
