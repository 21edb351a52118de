package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Limits enforced on domain mutations.
const (
	MaxNameservers        = 13
	MaxDSRecords          = 8
	MaxRegistrationYears  = 10
	RegistrationPeriodMin = 1
)

// ContactRole designates a contact's function on a domain.
type ContactRole string

const (
	ContactRoleRegistrant ContactRole = "REGISTRANT"
	ContactRoleAdmin      ContactRole = "ADMIN"
	ContactRoleTech       ContactRole = "TECH"
	ContactRoleBilling    ContactRole = "BILLING"
)

func (r ContactRole) IsValid() bool {
	switch r {
	case ContactRoleRegistrant, ContactRoleAdmin, ContactRoleTech, ContactRoleBilling:
		return true
	}
	return false
}

// Required reports whether a domain must always carry a contact in this role.
func (r ContactRole) Required() bool {
	return r == ContactRoleAdmin || r == ContactRoleTech
}

// DSRecord is a DNSSEC delegation signer record.
type DSRecord struct {
	KeyTag     int
	Algorithm  int
	DigestType int
	Digest     string // hex
}

// digest lengths (hex chars) by digest type per RFC 4034/4509/6605.
var dsDigestLengths = map[int]int{
	1: 40, // SHA-1
	2: 64, // SHA-256
	4: 96, // SHA-384
}

var dsAllowedAlgorithms = map[int]bool{
	3: true, 5: true, 6: true, 7: true, 8: true, 10: true,
	12: true, 13: true, 14: true, 15: true, 16: true,
}

// Validate checks digest length against digest type and the algorithm number.
func (d DSRecord) Validate() error {
	wantLen, ok := dsDigestLengths[d.DigestType]
	if !ok {
		return NewValidationError("ds_record", "unsupported digest type")
	}
	if len(d.Digest) != wantLen {
		return NewValidationError("ds_record", "digest length does not match digest type")
	}
	if _, err := hex.DecodeString(d.Digest); err != nil {
		return NewValidationError("ds_record", "digest is not valid hex")
	}
	if !dsAllowedAlgorithms[d.Algorithm] {
		return NewValidationError("ds_record", "unsupported algorithm")
	}
	return nil
}

// TransferStatus is the resolution state of a domain transfer.
type TransferStatus string

const (
	TransferStatusPending         TransferStatus = "PENDING"
	TransferStatusClientApproved  TransferStatus = "CLIENT_APPROVED"
	TransferStatusClientRejected  TransferStatus = "CLIENT_REJECTED"
	TransferStatusClientCancelled TransferStatus = "CLIENT_CANCELLED"
	TransferStatusServerApproved  TransferStatus = "SERVER_APPROVED"
	TransferStatusServerCancelled TransferStatus = "SERVER_CANCELLED"
)

func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusPending, TransferStatusClientApproved, TransferStatusClientRejected,
		TransferStatusClientCancelled, TransferStatusServerApproved, TransferStatusServerCancelled:
		return true
	}
	return false
}

// TransferData is the pending or last-resolved transfer state of a domain.
// The server-approve entity ids reference billing/poll/recurring rows created
// speculatively at request time; they are applied or discarded atomically when
// the transfer resolves.
type TransferData struct {
	Status                        TransferStatus
	GainingRegistrarID            string
	LosingRegistrarID             string
	TransferRequestTime           time.Time
	PendingTransferExpirationTime time.Time // automatic server-approve deadline
	TransferPeriodYears           int
	ServerApproveBillingEventID   *uuid.UUID
	ServerApproveAutorenewID      *uuid.UUID
	ServerApprovePollMessageIDs   []uuid.UUID
}

// Domain is the mutable aggregate root of the lifecycle engine. Grace periods
// and billing references are kept consistent with the billing ledger: a grace
// period never references a billing event that does not exist.
type Domain struct {
	RepoID          uuid.UUID
	Name            string
	TLD             string
	SponsorID       string // current sponsoring registrar
	Statuses        StatusSet
	CreationTime    time.Time
	ExpirationTime  time.Time
	DeletionTime    *time.Time // scheduled (PENDING_DELETE) or effective soft-delete time
	AuthInfoHash    string
	Nameservers     []string
	Contacts        map[ContactRole]string
	DSRecords       []DSRecord
	TransferData    *TransferData
	AutorenewID     *uuid.UUID // current Recurring billing event
	AutorenewPollID *uuid.UUID // current Autorenew poll message
	PackageTokenID  *string    // attached PACKAGE allocation token
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExistsAt reports whether the domain is visible (not soft-deleted) as of t.
// A PENDING_DELETE domain still exists until its deletion time passes.
func (d *Domain) ExistsAt(t time.Time) bool {
	return d.DeletionTime == nil || d.DeletionTime.After(t)
}

// HasPendingTransfer reports whether a transfer awaits resolution.
func (d *Domain) HasPendingTransfer() bool {
	return d.TransferData != nil && d.TransferData.Status == TransferStatusPending
}

// RecomputeInactive derives the INACTIVE status from the nameserver set.
func (d *Domain) RecomputeInactive() {
	if len(d.Nameservers) == 0 {
		d.Statuses.Add(StatusInactive)
	} else {
		d.Statuses.Remove(StatusInactive)
	}
}

// ParentTLD returns the label after the first dot, lowercased.
func ParentTLD(domainName string) string {
	i := strings.Index(domainName, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(domainName[i+1:])
}

// ValidateRegistrationPeriod checks a whole-year registration period.
func ValidateRegistrationPeriod(years int) error {
	if years < RegistrationPeriodMin || years > MaxRegistrationYears {
		return NewValidationError("period", "must be between 1 and 10 years")
	}
	return nil
}
