package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryType identifies which flow produced a history entry.
type HistoryType string

const (
	HistoryDomainCreate          HistoryType = "DOMAIN_CREATE"
	HistoryDomainRenew           HistoryType = "DOMAIN_RENEW"
	HistoryDomainDelete          HistoryType = "DOMAIN_DELETE"
	HistoryDomainUpdate          HistoryType = "DOMAIN_UPDATE"
	HistoryDomainTransferApprove HistoryType = "DOMAIN_TRANSFER_APPROVE"
	HistoryDomainTransferReject  HistoryType = "DOMAIN_TRANSFER_REJECT"
	HistoryDomainTransferCancel  HistoryType = "DOMAIN_TRANSFER_CANCEL"
	HistoryDomainRestore         HistoryType = "DOMAIN_RESTORE"
	HistoryDomainAutorenew       HistoryType = "DOMAIN_AUTORENEW"
	HistoryDomainDeleteFinalize  HistoryType = "DOMAIN_DELETE_FINALIZE"
)

// TransactionReportField names a per-TLD counter in the registrar
// transaction report.
type TransactionReportField string

const (
	FieldNetAddsPerYear    TransactionReportField = "NET_ADDS"    // suffixed with _<years>_YR
	FieldNetRenewsPerYear  TransactionReportField = "NET_RENEWS"  // suffixed with _<years>_YR
	FieldDeletedGrace      TransactionReportField = "DELETED_DOMAINS_GRACE"
	FieldDeletedNoGrace    TransactionReportField = "DELETED_DOMAINS_NOGRACE"
	FieldTransferSuccess   TransactionReportField = "TRANSFER_SUCCESSFUL"
	FieldTransferRejected  TransactionReportField = "TRANSFER_REJECTED"
	FieldTransferCancelled TransactionReportField = "TRANSFER_CANCELLED"
	FieldRestoredDomains   TransactionReportField = "RESTORED_DOMAINS"
)

// TransactionRecord is one delta in the transaction report. Negative amounts
// retroactively subtract a previously reported count (e.g. a renew deleted
// inside its grace window).
type TransactionRecord struct {
	TLD           string
	ReportingTime time.Time
	Field         TransactionReportField
	PeriodYears   int // 0 when the field is not per-year
	Amount        int
}

// HistoryEntry is the immutable audit record of one flow execution. Every
// billing/grace/poll mutation is attributed to exactly one history entry, and
// entries for one domain are totally ordered by modification time.
type HistoryEntry struct {
	ID               uuid.UUID
	Type             HistoryType
	DomainRepoID     uuid.UUID
	DomainName       string
	RegistrarID      string
	ModificationTime time.Time
	Reason           string
	BySuperuser      bool
	Records          []TransactionRecord
}

// NewHistoryEntry stamps a new audit record for a flow execution.
func NewHistoryEntry(t HistoryType, d *Domain, registrarID string,
	modTime time.Time, bySuperuser bool) *HistoryEntry {
	return &HistoryEntry{
		ID:               uuid.New(),
		Type:             t,
		DomainRepoID:     d.RepoID,
		DomainName:       d.Name,
		RegistrarID:      registrarID,
		ModificationTime: modTime,
		BySuperuser:      bySuperuser,
	}
}
