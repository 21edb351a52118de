package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemovePackageToken is the sentinel token value a registrar supplies on
// renew to detach a previously attached PACKAGE token instead of redeeming a
// new one.
const RemovePackageToken = "__REMOVE_PACKAGE__"

// TokenType classifies allocation tokens.
type TokenType string

const (
	TokenSingleUse    TokenType = "SINGLE_USE"
	TokenUnlimitedUse TokenType = "UNLIMITED_USE"
	TokenPackage      TokenType = "PACKAGE"
	TokenDefaultPromo TokenType = "DEFAULT_PROMO"
)

func (t TokenType) IsValid() bool {
	switch t {
	case TokenSingleUse, TokenUnlimitedUse, TokenPackage, TokenDefaultPromo:
		return true
	}
	return false
}

// TokenStatus is a token's position in its promotion window.
type TokenStatus string

const (
	TokenNotStarted TokenStatus = "NOT_STARTED"
	TokenValid      TokenStatus = "VALID"
	TokenEnded      TokenStatus = "ENDED"
	TokenCancelled  TokenStatus = "CANCELLED"
)

func (s TokenStatus) IsValid() bool {
	switch s {
	case TokenNotStarted, TokenValid, TokenEnded, TokenCancelled:
		return true
	}
	return false
}

// legalTokenTransition is the monotonic ordering table for token status
// schedules: NOT_STARTED→VALID→{ENDED, CANCELLED}, no regressions.
func legalTokenTransition(from, to TokenStatus) bool {
	switch from {
	case TokenNotStarted:
		return to == TokenValid
	case TokenValid:
		return to == TokenEnded || to == TokenCancelled
	}
	return false
}

// ValidateTokenStatusSchedule rejects any schedule that regresses or does not
// begin in NOT_STARTED at start of time.
func ValidateTokenStatusSchedule(schedule TimedTransitions[TokenStatus]) error {
	if schedule.Len() == 0 {
		return NewValidationError("status_transitions", "schedule must not be empty")
	}
	if schedule.All()[0].Value != TokenNotStarted {
		return NewValidationError("status_transitions", "schedule must begin in NOT_STARTED")
	}
	if err := ValidateOrdered(schedule, legalTokenTransition); err != nil {
		return NewValidationError("status_transitions", "schedule contains an illegal regression")
	}
	return nil
}

// AllocationToken is a promotional or single-use credential that gates
// registration eligibility and discounts fees.
type AllocationToken struct {
	Token                string
	Type                 TokenType
	BoundDomainName      string // empty = any name
	StatusSchedule       TimedTransitions[TokenStatus]
	AllowedTLDs          []string
	AllowedRegistrarIDs  []string
	DiscountFraction     decimal.Decimal // 0..1, applied to discounted years
	DiscountYears        int
	DiscountPremiums     bool
	RenewalPriceBehavior RenewalPriceBehavior
	RedemptionHistoryID  *uuid.UUID // set once for SINGLE_USE
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StatusAt resolves the token's status as of t under its installed schedule.
func (a *AllocationToken) StatusAt(t time.Time) TokenStatus {
	if a.StatusSchedule.Len() == 0 {
		// No promotion window installed: tokens are valid from creation.
		return TokenValid
	}
	return a.StatusSchedule.ValueAt(t)
}

// Redeemed reports whether a SINGLE_USE token has been consumed.
func (a *AllocationToken) Redeemed() bool {
	return a.RedemptionHistoryID != nil
}

// AllowsTLD reports membership in the allowed-TLD list (empty = all).
func (a *AllocationToken) AllowsTLD(tld string) bool {
	return len(a.AllowedTLDs) == 0 || slices.Contains(a.AllowedTLDs, tld)
}

// AllowsRegistrar reports membership in the allowed-registrar list (empty = all).
func (a *AllocationToken) AllowsRegistrar(registrarID string) bool {
	return len(a.AllowedRegistrarIDs) == 0 || slices.Contains(a.AllowedRegistrarIDs, registrarID)
}
