package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/pkg/ctxutil"
)

// caller is the acting registrar resolved from the request context.
type caller struct {
	RegistrarID string
	Superuser   bool
}

func callerFromCtx(ctx context.Context) (caller, error) {
	registrarID, ok := ctxutil.RegistrarIDFromCtx(ctx)
	if !ok {
		return caller{}, domain.ErrNotAuthorized
	}
	return caller{RegistrarID: registrarID, Superuser: ctxutil.IsSuperuser(ctx)}, nil
}

// checkPreconditions runs the shared precondition chain, short-circuiting on
// the first failure: the domain exists and is not soft-deleted; the caller
// sponsors it or is superuser; the TLD phase permits mutations; no prohibiting
// status blocks the command. Superuser bypasses ownership and client-settable
// prohibitions, never server-side locks.
func (s *Service) checkPreconditions(ctx context.Context, d *domain.Domain, t *domain.TLD,
	c caller, now time.Time, prohibiting ...domain.StatusValue) error {

	if !d.ExistsAt(now) {
		return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotFound)
	}

	if !c.Superuser && d.SponsorID != c.RegistrarID {
		return fmt.Errorf("registrar %s does not sponsor %s: %w",
			c.RegistrarID, d.Name, domain.ErrNotAuthorized)
	}

	if !t.PhaseAt(now).AllowsMutations() {
		return fmt.Errorf("TLD %s is in predelegation: %w", t.Name, domain.ErrPolicyViolation)
	}

	for _, status := range prohibiting {
		if !d.Statuses.Has(status) {
			continue
		}
		if c.Superuser && status.ClientSettable() {
			continue
		}
		return fmt.Errorf("domain %s has status %s: %w",
			d.Name, status, domain.ErrStatusProhibited)
	}
	return nil
}

// loadDomainAndTLD locks the domain row and resolves its TLD policy.
func (s *Service) loadDomainAndTLD(ctx context.Context, name string) (*domain.Domain, *domain.TLD, error) {
	d, err := s.domains.GetByNameForUpdate(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("get domain: %w", err)
	}
	t, err := s.tlds.Get(ctx, d.TLD)
	if err != nil {
		return nil, nil, fmt.Errorf("get TLD policy: %w", err)
	}
	return d, t, nil
}

// firstLabel returns the registrable label before the first dot.
func firstLabel(domainName string) string {
	i := strings.Index(domainName, ".")
	if i < 0 {
		return domainName
	}
	return strings.ToLower(domainName[:i])
}
