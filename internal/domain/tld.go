package domain

import "time"

// TLDPhase is a TLD's lifecycle state, resolved from a time-keyed schedule.
type TLDPhase string

const (
	PhasePredelegation       TLDPhase = "PREDELEGATION"
	PhaseSunrise             TLDPhase = "SUNRISE"
	PhaseQuietPeriod         TLDPhase = "QUIET_PERIOD"
	PhaseGeneralAvailability TLDPhase = "GENERAL_AVAILABILITY"
)

func (p TLDPhase) IsValid() bool {
	switch p {
	case PhasePredelegation, PhaseSunrise, PhaseQuietPeriod, PhaseGeneralAvailability:
		return true
	}
	return false
}

// AllowsMutations reports whether registrar commands may mutate domains in
// this phase. Predelegation TLDs are not yet live.
func (p TLDPhase) AllowsMutations() bool {
	return p != PhasePredelegation
}

// TLD is the per-TLD registry policy: currency, grace-period durations,
// time-keyed cost and phase schedules, and fixed operation costs.
type TLD struct {
	Name     string
	Currency string

	AddGracePeriod        time.Duration
	RenewGracePeriod      time.Duration
	TransferGracePeriod   time.Duration
	AutorenewGracePeriod  time.Duration
	RedemptionGracePeriod time.Duration
	PendingDeleteLength   time.Duration
	// AutomaticTransferLength is the window before a pending transfer is
	// server-approved automatically.
	AutomaticTransferLength time.Duration

	CreateCosts   TimedTransitions[Money]
	RenewCosts    TimedTransitions[Money]
	EAPFees       TimedTransitions[Money]
	PhaseSchedule TimedTransitions[TLDPhase]

	RestoreCost      Money
	ServerStatusCost Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhaseAt resolves the TLD's lifecycle phase as of t.
func (t *TLD) PhaseAt(at time.Time) TLDPhase {
	return t.PhaseSchedule.ValueAt(at)
}

// CreateCostAt resolves the base create cost per year as of t.
func (t *TLD) CreateCostAt(at time.Time) Money {
	return t.CreateCosts.ValueAt(at)
}

// RenewCostAt resolves the base renew cost per year as of t.
func (t *TLD) RenewCostAt(at time.Time) Money {
	return t.RenewCosts.ValueAt(at)
}

// EAPFeeAt resolves the early-access surcharge as of t; zero outside any
// EAP window.
func (t *TLD) EAPFeeAt(at time.Time) Money {
	if t.EAPFees.Len() == 0 {
		return Zero(t.Currency)
	}
	return t.EAPFees.ValueAt(at)
}

// ReservationType is a reserved-list tier. Ordering is by restrictiveness;
// when a name appears on multiple lists the most restrictive message wins.
type ReservationType string

const (
	ReservationFullyBlocked        ReservationType = "FULLY_BLOCKED"
	ReservationNameCollision       ReservationType = "NAME_COLLISION"
	ReservationReservedForSpecific ReservationType = "RESERVED_FOR_SPECIFIC_USE"
	ReservationReservedForAnchor   ReservationType = "RESERVED_FOR_ANCHOR_TENANT"
	ReservationAllowedInSunrise    ReservationType = "ALLOWED_IN_SUNRISE"
)

// Severity orders reservation tiers; higher wins ties.
func (r ReservationType) Severity() int {
	switch r {
	case ReservationFullyBlocked:
		return 4
	case ReservationNameCollision:
		return 3
	case ReservationReservedForSpecific, ReservationReservedForAnchor:
		return 2
	case ReservationAllowedInSunrise:
		return 1
	}
	return 0
}

// Message is the check-response text for this reservation tier.
func (r ReservationType) Message() string {
	switch r {
	case ReservationFullyBlocked:
		return "Reserved"
	case ReservationNameCollision:
		return "Cannot be delegated"
	case ReservationReservedForSpecific:
		return "Reserved for specific use"
	case ReservationReservedForAnchor:
		return "Reserved for anchor tenant"
	case ReservationAllowedInSunrise:
		return "Reserved for sunrise"
	}
	return ""
}

// ReservedEntry is one reserved-list row. A label may appear on several
// lists of a TLD with different tiers.
type ReservedEntry struct {
	TLD          string
	Label        string
	Type         ReservationType
	AllowPremium bool // premium pricing suppressed for this label unless set
}

// MostRestrictive picks the winning reservation among a label's entries,
// nil when the label is unreserved.
func MostRestrictive(entries []ReservedEntry) *ReservedEntry {
	var best *ReservedEntry
	for i := range entries {
		if best == nil || entries[i].Type.Severity() > best.Type.Severity() {
			best = &entries[i]
		}
	}
	return best
}

// PremiumEntry is a premium-list price override for one label.
type PremiumEntry struct {
	TLD         string
	Label       string
	CreatePrice Money
	RenewPrice  Money
}
