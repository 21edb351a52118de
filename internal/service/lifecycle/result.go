package lifecycle

import (
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// CheckResult is the per-name availability answer.
type CheckResult struct {
	Name      string
	Available bool
	// Reason explains unavailability (registered, reserved tier message).
	Reason string
	// TokenApplies reports whether the presented allocation token could be
	// redeemed for this name.
	TokenApplies bool
	// Fee is the create quote, set only when fees were requested and the
	// name is available.
	Fee     *domain.Money
	Premium bool
}

// RenewResult reports the outcome of a renew flow.
type RenewResult struct {
	DomainName     string
	ExpirationTime time.Time
	Cost           domain.Money
}

// DeleteResult reports the outcome of a delete flow.
type DeleteResult struct {
	DomainName string
	// Immediate is true when the delete happened inside the add grace window.
	Immediate bool
	// DeletionTime is the scheduled effective deletion, zero when immediate.
	DeletionTime time.Time
}

// UpdateResult reports the outcome of an update flow.
type UpdateResult struct {
	DomainName string
	Statuses   []domain.StatusValue
	// Cost is non-nil when the update was billable (server status change by
	// a non-sponsoring registrar).
	Cost *domain.Money
}

// TransferResult reports a transfer resolution.
type TransferResult struct {
	DomainName     string
	Status         domain.TransferStatus
	ExpirationTime time.Time
}

// RestoreResult reports the outcome of a restore flow.
type RestoreResult struct {
	DomainName     string
	ExpirationTime time.Time
	Cost           domain.Money
}
