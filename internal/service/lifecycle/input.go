package lifecycle

import (
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// CheckInput asks for availability, reservation, and optionally fees for a
// set of names.
type CheckInput struct {
	Names []string
	// AllocationToken, when set, is evaluated for applicability per name.
	AllocationToken string
	// WithFees requests a create-fee quote per available name.
	WithFees bool
	Currency string
}

func (in CheckInput) Validate() error {
	if len(in.Names) == 0 {
		return domain.NewValidationError("names", "at least one name is required")
	}
	for _, name := range in.Names {
		if domain.ParentTLD(name) == "" {
			return domain.NewValidationError("names", "name must contain a TLD: "+name)
		}
	}
	return nil
}

// RenewInput extends a registration by whole years.
type RenewInput struct {
	DomainName string
	// CurrentExpiration must match the stored expiration exactly.
	CurrentExpiration time.Time
	Years             int
	AllocationToken   string
	Currency          string
}

func (in RenewInput) Validate() error {
	if in.DomainName == "" {
		return domain.NewValidationError("domain_name", "required")
	}
	if in.CurrentExpiration.IsZero() {
		return domain.NewValidationError("current_expiration", "required")
	}
	return domain.ValidateRegistrationPeriod(in.Years)
}

// DeleteInput deletes a domain, immediately inside the add grace window or
// via the redemption pipeline otherwise.
type DeleteInput struct {
	DomainName string
	// Reason is superuser metadata; it becomes the deletion poll message text.
	Reason string
}

func (in DeleteInput) Validate() error {
	if in.DomainName == "" {
		return domain.NewValidationError("domain_name", "required")
	}
	return nil
}

// UpdateInput applies add/remove deltas to a domain's satellite data.
type UpdateInput struct {
	DomainName string

	AddNameservers    []string
	RemoveNameservers []string

	AddContacts    map[domain.ContactRole]string
	RemoveContacts []domain.ContactRole

	AddDSRecords    []domain.DSRecord
	RemoveDSRecords []domain.DSRecord

	AddStatuses    []domain.StatusValue
	RemoveStatuses []domain.StatusValue

	// NewAuthInfo rotates the transfer authorization code.
	NewAuthInfo string
}

func (in UpdateInput) Validate() error {
	if in.DomainName == "" {
		return domain.NewValidationError("domain_name", "required")
	}
	added := make(map[domain.StatusValue]bool, len(in.AddStatuses))
	for _, v := range in.AddStatuses {
		added[v] = true
	}
	for _, v := range in.RemoveStatuses {
		if added[v] {
			return domain.NewValidationError("statuses",
				"status cannot be both added and removed: "+string(v))
		}
	}
	seen := make(map[domain.ContactRole]bool, len(in.AddContacts))
	for role := range in.AddContacts {
		if !role.IsValid() {
			return domain.NewValidationError("contacts", "unknown contact role: "+string(role))
		}
		seen[role] = true
	}
	for _, rec := range in.AddDSRecords {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TransferResolveInput resolves a pending transfer (approve, reject, or
// cancel depending on the flow invoked).
type TransferResolveInput struct {
	DomainName string
}

func (in TransferResolveInput) Validate() error {
	if in.DomainName == "" {
		return domain.NewValidationError("domain_name", "required")
	}
	return nil
}

// RestoreInput restores a domain from its redemption window.
type RestoreInput struct {
	DomainName string
	Currency   string
}

func (in RestoreInput) Validate() error {
	if in.DomainName == "" {
		return domain.NewValidationError("domain_name", "required")
	}
	return nil
}
