package rest

import (
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// moneyDTO is the wire representation of a monetary amount.
type moneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyDTO(m domain.Money) moneyDTO {
	return moneyDTO{Amount: m.Amount.StringFixed(2), Currency: m.Currency}
}

func toMoneyDTOPtr(m *domain.Money) *moneyDTO {
	if m == nil {
		return nil
	}
	dto := toMoneyDTO(*m)
	return &dto
}

type checkRequest struct {
	Names           []string `json:"names"`
	AllocationToken string   `json:"allocation_token,omitempty"`
	Fees            bool     `json:"fees,omitempty"`
	Currency        string   `json:"currency,omitempty"`
}

type checkResultDTO struct {
	Name         string    `json:"name"`
	Available    bool      `json:"available"`
	Reason       string    `json:"reason,omitempty"`
	TokenApplies bool      `json:"token_applies,omitempty"`
	Fee          *moneyDTO `json:"fee,omitempty"`
	Premium      bool      `json:"premium,omitempty"`
}

type checkResponse struct {
	Results []checkResultDTO `json:"results"`
}

type renewRequest struct {
	CurrentExpiration time.Time `json:"current_expiration"`
	Years             int       `json:"years"`
	AllocationToken   string    `json:"allocation_token,omitempty"`
	Currency          string    `json:"currency,omitempty"`
}

type renewResponse struct {
	DomainName     string    `json:"domain_name"`
	ExpirationTime time.Time `json:"expiration_time"`
	Cost           moneyDTO  `json:"cost"`
}

type deleteRequest struct {
	Reason string `json:"reason,omitempty"`
}

type deleteResponse struct {
	DomainName   string     `json:"domain_name"`
	Immediate    bool       `json:"immediate"`
	DeletionTime *time.Time `json:"deletion_time,omitempty"`
}

type dsRecordDTO struct {
	KeyTag     int    `json:"key_tag"`
	Algorithm  int    `json:"algorithm"`
	DigestType int    `json:"digest_type"`
	Digest     string `json:"digest"`
}

func (d dsRecordDTO) toDomain() domain.DSRecord {
	return domain.DSRecord{
		KeyTag:     d.KeyTag,
		Algorithm:  d.Algorithm,
		DigestType: d.DigestType,
		Digest:     d.Digest,
	}
}

type updateRequest struct {
	AddNameservers    []string          `json:"add_nameservers,omitempty"`
	RemoveNameservers []string          `json:"remove_nameservers,omitempty"`
	AddContacts       map[string]string `json:"add_contacts,omitempty"`
	RemoveContacts    []string          `json:"remove_contacts,omitempty"`
	AddDSRecords      []dsRecordDTO     `json:"add_ds_records,omitempty"`
	RemoveDSRecords   []dsRecordDTO     `json:"remove_ds_records,omitempty"`
	AddStatuses       []string          `json:"add_statuses,omitempty"`
	RemoveStatuses    []string          `json:"remove_statuses,omitempty"`
	NewAuthInfo       string            `json:"new_auth_info,omitempty"`
}

type updateResponse struct {
	DomainName string    `json:"domain_name"`
	Statuses   []string  `json:"statuses"`
	Cost       *moneyDTO `json:"cost,omitempty"`
}

type transferResponseDTO struct {
	DomainName     string    `json:"domain_name"`
	Status         string    `json:"status"`
	ExpirationTime time.Time `json:"expiration_time"`
}

type restoreRequest struct {
	Currency string `json:"currency,omitempty"`
}

type restoreResponse struct {
	DomainName     string    `json:"domain_name"`
	ExpirationTime time.Time `json:"expiration_time"`
	Cost           moneyDTO  `json:"cost"`
}

type pollMessageDTO struct {
	ID               string                         `json:"id"`
	Type             string                         `json:"type"`
	DomainName       string                         `json:"domain_name"`
	EventTime        time.Time                      `json:"event_time"`
	Message          string                         `json:"message,omitempty"`
	AutorenewEndTime *time.Time                     `json:"autorenew_end_time,omitempty"`
	Transfer         *domain.TransferResponse       `json:"transfer,omitempty"`
	PendingAction    *domain.PendingActionResponse  `json:"pending_action,omitempty"`
}

func toPollMessageDTO(m *domain.PollMessage) pollMessageDTO {
	dto := pollMessageDTO{
		ID:            m.ID.String(),
		Type:          string(m.Type),
		DomainName:    m.DomainName,
		EventTime:     m.EventTime,
		Message:       m.Message,
		Transfer:      m.Transfer,
		PendingAction: m.PendingAction,
	}
	if !m.AutorenewEndTime.IsZero() {
		end := m.AutorenewEndTime
		dto.AutorenewEndTime = &end
	}
	return dto
}
