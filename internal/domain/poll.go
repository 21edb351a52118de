package domain

import (
	"time"

	"github.com/google/uuid"
)

// PollMessageType distinguishes one-shot notifications from the recurring
// autorenew notice tied to a Recurring billing event.
type PollMessageType string

const (
	PollOneTime   PollMessageType = "ONE_TIME"
	PollAutorenew PollMessageType = "AUTORENEW"
)

// TransferResponse is the structured payload attached to transfer-related
// poll messages.
type TransferResponse struct {
	DomainName         string         `json:"domain_name"`
	TransferStatus     TransferStatus `json:"transfer_status"`
	GainingRegistrarID string         `json:"gaining_registrar_id"`
	LosingRegistrarID  string         `json:"losing_registrar_id"`
	TransferRequestAt  time.Time      `json:"transfer_request_at"`
	// ExpectedResolutionAt is the automatic server-approve deadline set at
	// request time, so registrars can reconcile an early resolution against
	// the originally expected one.
	ExpectedResolutionAt time.Time  `json:"expected_resolution_at"`
	ResolvedAt           time.Time  `json:"resolved_at"`
	NewExpirationTime    *time.Time `json:"new_expiration_time,omitempty"`
}

// PendingActionResponse reports the outcome of a previously pending action,
// such as the completion of a scheduled deletion.
type PendingActionResponse struct {
	DomainName  string    `json:"domain_name"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PollMessage is a per-registrar notification. It is invisible to a poll
// request until its event time has passed. Autorenew messages share the end
// time of their parent Recurring event; advancing EventTime models the next
// undelivered occurrence.
type PollMessage struct {
	ID             uuid.UUID
	Type           PollMessageType
	RegistrarID    string
	DomainRepoID   uuid.UUID
	DomainName     string
	EventTime      time.Time
	Message        string
	HistoryEntryID uuid.UUID

	// Autorenew payload.
	AutorenewEndTime time.Time
	RecurringEventID *uuid.UUID

	// Optional structured payloads.
	Transfer      *TransferResponse
	PendingAction *PendingActionResponse
}

// NewOneTimePoll creates a one-shot notification visible from eventTime.
func NewOneTimePoll(registrarID string, d *Domain, eventTime time.Time,
	message string, historyID uuid.UUID) *PollMessage {
	return &PollMessage{
		ID:             uuid.New(),
		Type:           PollOneTime,
		RegistrarID:    registrarID,
		DomainRepoID:   d.RepoID,
		DomainName:     d.Name,
		EventTime:      eventTime,
		Message:        message,
		HistoryEntryID: historyID,
	}
}

// NewAutorenewPoll creates the recurring autorenew notice for a Recurring
// billing event, first visible at the domain's expiration.
func NewAutorenewPoll(registrarID string, d *Domain, eventTime time.Time,
	recurringID uuid.UUID, historyID uuid.UUID) *PollMessage {
	return &PollMessage{
		ID:               uuid.New(),
		Type:             PollAutorenew,
		RegistrarID:      registrarID,
		DomainRepoID:     d.RepoID,
		DomainName:       d.Name,
		EventTime:        eventTime,
		Message:          "Domain was auto-renewed.",
		HistoryEntryID:   historyID,
		AutorenewEndTime: EndOfTime,
		RecurringEventID: &recurringID,
	}
}

// VisibleAt reports whether the message can be delivered as of t.
func (p *PollMessage) VisibleAt(t time.Time) bool {
	return !p.EventTime.After(t)
}
