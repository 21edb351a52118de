package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/domain"
)

// Update applies add/remove deltas to a domain's nameservers, contacts, DS
// records, and status values. Server-side statuses require superuser; a
// status change by a non-sponsoring registrar is billable and notifies the
// sponsor.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*UpdateResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		result     *UpdateResult
		dnsChanged bool
	)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, t, err := s.loadDomainAndTLD(txCtx, in.DomainName)
		if err != nil {
			return err
		}

		prohibiting := []domain.StatusValue{domain.StatusPendingDelete}
		// A command that removes the update lock is allowed to pass it.
		if !slices.Contains(in.RemoveStatuses, domain.StatusClientUpdateProhibited) {
			prohibiting = append(prohibiting, domain.StatusClientUpdateProhibited)
		}
		prohibiting = append(prohibiting, domain.StatusServerUpdateProhibited)

		if err := s.checkPreconditions(txCtx, d, t, c, now, prohibiting...); err != nil {
			return err
		}

		for _, v := range append(append([]domain.StatusValue{}, in.AddStatuses...), in.RemoveStatuses...) {
			if !v.IsValid() {
				return domain.NewValidationError("statuses", "unknown status value: "+string(v))
			}
			if !v.ClientSettable() && !c.Superuser {
				return fmt.Errorf("status %s requires superuser: %w", v, domain.ErrNotAuthorized)
			}
		}

		if err := applyHostDelta(d, in); err != nil {
			return err
		}
		if err := applyContactDelta(d, in); err != nil {
			return err
		}
		if err := applyDSDelta(d, in); err != nil {
			return err
		}

		statusChanged := len(in.AddStatuses)+len(in.RemoveStatuses) > 0
		for _, v := range in.RemoveStatuses {
			if v.AffectsDNS() {
				dnsChanged = true
			}
			d.Statuses.Remove(v)
		}
		for _, v := range in.AddStatuses {
			if v.AffectsDNS() {
				dnsChanged = true
			}
			d.Statuses.Remove(domain.StatusOK)
			d.Statuses.Add(v)
		}
		d.RecomputeInactive()
		if len(d.Statuses) > 1 {
			d.Statuses.Remove(domain.StatusOK)
		}
		if len(d.Statuses) == 0 {
			d.Statuses.Add(domain.StatusOK)
		}
		if err := domain.ValidateStatuses(d.Statuses); err != nil {
			return err
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainUpdate, d, c.RegistrarID, now, c.Superuser)
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		if in.NewAuthInfo != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(in.NewAuthInfo), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash auth info: %w", err)
			}
			d.AuthInfoHash = string(hash)
		}

		// A non-sponsoring (superuser) status change is billable and the
		// sponsor is told exactly what changed.
		var cost *domain.Money
		if statusChanged && c.RegistrarID != d.SponsorID {
			charge := domain.NewOneTime(domain.ReasonServerStatus, d, d.SponsorID,
				t.ServerStatusCost, 0, now, now, history.ID)
			if err := s.billing.Create(txCtx, charge); err != nil {
				return fmt.Errorf("create server status billing event: %w", err)
			}
			cost = &t.ServerStatusCost

			msg := domain.NewOneTimePoll(d.SponsorID, d, now,
				statusChangeMessage(in.AddStatuses, in.RemoveStatuses), history.ID)
			if err := s.poll.Enqueue(txCtx, msg); err != nil {
				return err
			}
		}

		if len(in.AddNameservers)+len(in.RemoveNameservers)+len(in.AddDSRecords)+len(in.RemoveDSRecords) > 0 {
			dnsChanged = true
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &UpdateResult{
			DomainName: d.Name,
			Statuses:   d.Statuses.Sorted(),
			Cost:       cost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if dnsChanged {
		s.dns.PublishRefresh(ctx, dns.RefreshEvent{
			DomainName: in.DomainName,
			TLD:        domain.ParentTLD(in.DomainName),
			EventTime:  now,
		})
	}

	s.log.InfoContext(ctx, "domain updated",
		slog.String("domain", result.DomainName),
		slog.Bool("dns_changed", dnsChanged),
	)
	return result, nil
}

func applyHostDelta(d *domain.Domain, in UpdateInput) error {
	hosts := make(map[string]bool, len(d.Nameservers))
	for _, ns := range d.Nameservers {
		hosts[strings.ToLower(ns)] = true
	}
	for _, ns := range in.RemoveNameservers {
		delete(hosts, strings.ToLower(ns))
	}
	for _, ns := range in.AddNameservers {
		hosts[strings.ToLower(ns)] = true
	}
	if len(hosts) > domain.MaxNameservers {
		return fmt.Errorf("more than %d nameservers: %w",
			domain.MaxNameservers, domain.ErrPolicyViolation)
	}
	d.Nameservers = d.Nameservers[:0]
	for ns := range hosts {
		d.Nameservers = append(d.Nameservers, ns)
	}
	slices.Sort(d.Nameservers)
	return nil
}

func applyContactDelta(d *domain.Domain, in UpdateInput) error {
	if d.Contacts == nil {
		d.Contacts = make(map[domain.ContactRole]string)
	}
	for _, role := range in.RemoveContacts {
		if role.Required() {
			if _, replacing := in.AddContacts[role]; !replacing {
				return domain.NewValidationError("contacts",
					"required contact role cannot be removed: "+string(role))
			}
		}
		delete(d.Contacts, role)
	}
	for role, contactID := range in.AddContacts {
		d.Contacts[role] = contactID
	}
	return nil
}

func applyDSDelta(d *domain.Domain, in UpdateInput) error {
	kept := d.DSRecords[:0]
	for _, rec := range d.DSRecords {
		if !slices.Contains(in.RemoveDSRecords, rec) {
			kept = append(kept, rec)
		}
	}
	for _, rec := range in.AddDSRecords {
		if !slices.Contains(kept, rec) {
			kept = append(kept, rec)
		}
	}
	if len(kept) > domain.MaxDSRecords {
		return fmt.Errorf("more than %d DS records: %w",
			domain.MaxDSRecords, domain.ErrPolicyViolation)
	}
	d.DSRecords = kept
	return nil
}

func statusChangeMessage(added, removed []domain.StatusValue) string {
	var b strings.Builder
	b.WriteString("Domain statuses changed by the registry.")
	if len(added) > 0 {
		b.WriteString(" Added:")
		for _, v := range added {
			b.WriteString(" " + string(v))
		}
		b.WriteString(".")
	}
	if len(removed) > 0 {
		b.WriteString(" Removed:")
		for _, v := range removed {
			b.WriteString(" " + string(v))
		}
		b.WriteString(".")
	}
	return b.String()
}
