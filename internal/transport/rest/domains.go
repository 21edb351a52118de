package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/lifecycle"
)

// Check answers availability for a batch of names.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}
	if len(req.Names) > h.checkLimit {
		writeBadRequest(w, r, fmt.Sprintf("at most %d names per check", h.checkLimit))
		return
	}

	results, err := h.lifecycle.Check(r.Context(), lifecycle.CheckInput{
		Names:           req.Names,
		AllocationToken: req.AllocationToken,
		WithFees:        req.Fees,
		Currency:        req.Currency,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := checkResponse{Results: make([]checkResultDTO, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, checkResultDTO{
			Name:         res.Name,
			Available:    res.Available,
			Reason:       res.Reason,
			TokenApplies: res.TokenApplies,
			Fee:          toMoneyDTOPtr(res.Fee),
			Premium:      res.Premium,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Renew extends a registration by whole years.
func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}

	result, err := h.lifecycle.Renew(r.Context(), lifecycle.RenewInput{
		DomainName:        chi.URLParam(r, "name"),
		CurrentExpiration: req.CurrentExpiration,
		Years:             req.Years,
		AllocationToken:   req.AllocationToken,
		Currency:          req.Currency,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renewResponse{
		DomainName:     result.DomainName,
		ExpirationTime: result.ExpirationTime,
		Cost:           toMoneyDTO(result.Cost),
	})
}

// Delete removes a domain, immediately or through the redemption pipeline.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, r, "invalid JSON body")
			return
		}
	}

	result, err := h.lifecycle.Delete(r.Context(), lifecycle.DeleteInput{
		DomainName: chi.URLParam(r, "name"),
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := deleteResponse{DomainName: result.DomainName, Immediate: result.Immediate}
	if !result.DeletionTime.IsZero() {
		dt := result.DeletionTime
		resp.DeletionTime = &dt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update applies add/remove deltas to a domain's satellite data.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}

	in := lifecycle.UpdateInput{
		DomainName:        chi.URLParam(r, "name"),
		AddNameservers:    req.AddNameservers,
		RemoveNameservers: req.RemoveNameservers,
		NewAuthInfo:       req.NewAuthInfo,
	}
	if len(req.AddContacts) > 0 {
		in.AddContacts = make(map[domain.ContactRole]string, len(req.AddContacts))
		for role, id := range req.AddContacts {
			in.AddContacts[domain.ContactRole(role)] = id
		}
	}
	for _, role := range req.RemoveContacts {
		in.RemoveContacts = append(in.RemoveContacts, domain.ContactRole(role))
	}
	for _, rec := range req.AddDSRecords {
		in.AddDSRecords = append(in.AddDSRecords, rec.toDomain())
	}
	for _, rec := range req.RemoveDSRecords {
		in.RemoveDSRecords = append(in.RemoveDSRecords, rec.toDomain())
	}
	for _, v := range req.AddStatuses {
		in.AddStatuses = append(in.AddStatuses, domain.StatusValue(v))
	}
	for _, v := range req.RemoveStatuses {
		in.RemoveStatuses = append(in.RemoveStatuses, domain.StatusValue(v))
	}

	result, err := h.lifecycle.Update(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := updateResponse{
		DomainName: result.DomainName,
		Statuses:   make([]string, 0, len(result.Statuses)),
		Cost:       toMoneyDTOPtr(result.Cost),
	}
	for _, v := range result.Statuses {
		resp.Statuses = append(resp.Statuses, string(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// TransferApprove resolves a pending transfer in favor of the gaining registrar.
func (h *Handler) TransferApprove(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.lifecycle.TransferApprove)
}

// TransferReject resolves a pending transfer against the gaining registrar.
func (h *Handler) TransferReject(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.lifecycle.TransferReject)
}

// TransferCancel withdraws a pending transfer request.
func (h *Handler) TransferCancel(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.lifecycle.TransferCancel)
}

func (h *Handler) resolveTransfer(w http.ResponseWriter, r *http.Request,
	resolve func(ctx context.Context, in lifecycle.TransferResolveInput) (*lifecycle.TransferResult, error)) {

	result, err := resolve(r.Context(), lifecycle.TransferResolveInput{
		DomainName: chi.URLParam(r, "name"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponseDTO{
		DomainName:     result.DomainName,
		Status:         string(result.Status),
		ExpirationTime: result.ExpirationTime,
	})
}

// Restore brings a domain back from its redemption window.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, r, "invalid JSON body")
			return
		}
	}

	result, err := h.lifecycle.Restore(r.Context(), lifecycle.RestoreInput{
		DomainName: chi.URLParam(r, "name"),
		Currency:   req.Currency,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, restoreResponse{
		DomainName:     result.DomainName,
		ExpirationTime: result.ExpirationTime,
		Cost:           toMoneyDTO(result.Cost),
	})
}
