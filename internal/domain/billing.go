package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillingEventType tags the three variants of the billing ledger entry.
type BillingEventType string

const (
	BillingOneTime      BillingEventType = "ONE_TIME"
	BillingRecurring    BillingEventType = "RECURRING"
	BillingCancellation BillingEventType = "CANCELLATION"
)

// BillingReason is the operation a charge pays for.
type BillingReason string

const (
	ReasonCreate       BillingReason = "CREATE"
	ReasonRenew        BillingReason = "RENEW"
	ReasonTransfer     BillingReason = "TRANSFER"
	ReasonRestore      BillingReason = "RESTORE"
	ReasonServerStatus BillingReason = "SERVER_STATUS"
)

func (r BillingReason) IsValid() bool {
	switch r {
	case ReasonCreate, ReasonRenew, ReasonTransfer, ReasonRestore, ReasonServerStatus:
		return true
	}
	return false
}

// RenewalPriceBehavior is the pricing policy carried by a Recurring event.
// It is locked in when the recurrence is created, not recomputed from the
// current premium catalog at each renewal.
type RenewalPriceBehavior string

const (
	// RenewalPriceDefault charges the live market price, premium included.
	RenewalPriceDefault RenewalPriceBehavior = "DEFAULT"
	// RenewalPriceNonPremium charges the standard price even for premium names.
	RenewalPriceNonPremium RenewalPriceBehavior = "NONPREMIUM"
	// RenewalPriceSpecified charges the fixed price stored on the recurrence.
	RenewalPriceSpecified RenewalPriceBehavior = "SPECIFIED"
)

func (b RenewalPriceBehavior) IsValid() bool {
	switch b {
	case RenewalPriceDefault, RenewalPriceNonPremium, RenewalPriceSpecified:
		return true
	}
	return false
}

// BillingEvent is one entry of the append-only billing ledger, a tagged union
// with a common header and variant-specific payload. Entries are immutable
// once created, with the single exception of closing a Recurring event's
// recurrence end time, which only ever moves forward.
type BillingEvent struct {
	ID             uuid.UUID
	Type           BillingEventType
	Reason         BillingReason
	RegistrarID    string
	DomainRepoID   uuid.UUID
	DomainName     string
	EventTime      time.Time
	HistoryEntryID uuid.UUID

	// OneTime payload.
	Cost        *Money
	PeriodYears int
	BillingTime time.Time // when the charge becomes non-reversible

	// Recurring payload. RecurrenceEndTime is EndOfTime while open.
	RecurrenceEndTime    time.Time
	RenewalPriceBehavior RenewalPriceBehavior
	RenewalPrice         *Money

	// Cancellation payload: the event being reversed.
	CancelledEventID *uuid.UUID
}

// NewOneTime creates a single charge.
func NewOneTime(reason BillingReason, d *Domain, registrarID string, cost Money,
	periodYears int, eventTime, billingTime time.Time, historyID uuid.UUID) *BillingEvent {
	return &BillingEvent{
		ID:             uuid.New(),
		Type:           BillingOneTime,
		Reason:         reason,
		RegistrarID:    registrarID,
		DomainRepoID:   d.RepoID,
		DomainName:     d.Name,
		EventTime:      eventTime,
		HistoryEntryID: historyID,
		Cost:           &cost,
		PeriodYears:    periodYears,
		BillingTime:    billingTime,
	}
}

// NewRecurring creates an open-ended autorenew charge whose next firing is
// eventTime. The recurrence stays open until explicitly closed.
func NewRecurring(d *Domain, registrarID string, eventTime time.Time,
	behavior RenewalPriceBehavior, price *Money, historyID uuid.UUID) *BillingEvent {
	return &BillingEvent{
		ID:                   uuid.New(),
		Type:                 BillingRecurring,
		Reason:               ReasonRenew,
		RegistrarID:          registrarID,
		DomainRepoID:         d.RepoID,
		DomainName:           d.Name,
		EventTime:            eventTime,
		HistoryEntryID:       historyID,
		RecurrenceEndTime:    EndOfTime,
		RenewalPriceBehavior: behavior,
		RenewalPrice:         price,
	}
}

// NewCancellation reverses a prior OneTime or Recurring event. The billing
// time mirrors the reversed event's so downstream invoicing nets to zero.
func NewCancellation(target *BillingEvent, eventTime, billingTime time.Time,
	historyID uuid.UUID) *BillingEvent {
	targetID := target.ID
	return &BillingEvent{
		ID:               uuid.New(),
		Type:             BillingCancellation,
		Reason:           target.Reason,
		RegistrarID:      target.RegistrarID,
		DomainRepoID:     target.DomainRepoID,
		DomainName:       target.DomainName,
		EventTime:        eventTime,
		HistoryEntryID:   historyID,
		BillingTime:      billingTime,
		CancelledEventID: &targetID,
	}
}

// IsOpen reports whether a Recurring event's recurrence is still open.
func (e *BillingEvent) IsOpen() bool {
	return e.Type == BillingRecurring && e.RecurrenceEndTime.Equal(EndOfTime)
}

// CloseRecurrence sets the recurrence end time. The end time only moves
// forward; asking it to move backward is a ledger corruption and fails.
func (e *BillingEvent) CloseRecurrence(endTime time.Time) error {
	if e.Type != BillingRecurring {
		return NewValidationError("billing_event", "only recurring events can be closed")
	}
	if endTime.Equal(EndOfTime) {
		return NewValidationError("billing_event", "recurrence cannot be reopened")
	}
	if !e.IsOpen() && endTime.Before(e.RecurrenceEndTime) {
		return NewValidationError("billing_event", "recurrence end time cannot move backward")
	}
	e.RecurrenceEndTime = endTime
	return nil
}
