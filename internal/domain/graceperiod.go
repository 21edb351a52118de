package domain

import (
	"time"

	"github.com/google/uuid"
)

// GracePeriodType is the kind of reversible window a grace period tracks.
type GracePeriodType string

const (
	GraceAdd        GracePeriodType = "ADD"
	GraceRenew      GracePeriodType = "RENEW"
	GraceTransfer   GracePeriodType = "TRANSFER"
	GraceAutoRenew  GracePeriodType = "AUTO_RENEW"
	GraceRedemption GracePeriodType = "REDEMPTION"
)

func (t GracePeriodType) IsValid() bool {
	switch t {
	case GraceAdd, GraceRenew, GraceTransfer, GraceAutoRenew, GraceRedemption:
		return true
	}
	return false
}

// RevenueBearing reports whether the grace period shields a charge that must
// be reversed with a Cancellation when the window closes early.
func (t GracePeriodType) RevenueBearing() bool {
	switch t {
	case GraceAdd, GraceRenew, GraceTransfer, GraceAutoRenew:
		return true
	}
	return false
}

// GracePeriod is a time-bounded window during which a billable mutation can
// still be reversed. It references at most one billing event; REDEMPTION
// windows carry none.
type GracePeriod struct {
	ID             uuid.UUID
	Type           GracePeriodType
	DomainRepoID   uuid.UUID
	RegistrarID    string
	ExpirationTime time.Time
	BillingEventID *uuid.UUID
}

// NewGracePeriod opens a grace period, optionally tied to the billing event
// it would cancel if reversed.
func NewGracePeriod(t GracePeriodType, domainRepoID uuid.UUID, registrarID string,
	expiration time.Time, billingEventID *uuid.UUID) *GracePeriod {
	return &GracePeriod{
		ID:             uuid.New(),
		Type:           t,
		DomainRepoID:   domainRepoID,
		RegistrarID:    registrarID,
		ExpirationTime: expiration,
		BillingEventID: billingEventID,
	}
}

// ActiveAt reports whether the window is still open as of t.
func (g *GracePeriod) ActiveAt(t time.Time) bool {
	return g.ExpirationTime.After(t)
}
