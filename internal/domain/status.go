package domain

import "sort"

// StatusValue is an EPP domain status flag. The mutual-exclusion table lives
// in ValidateStatuses, checked on every mutation, so the constraints stay in
// one place instead of scattered boolean fields.
type StatusValue string

const (
	StatusClientDeleteProhibited   StatusValue = "CLIENT_DELETE_PROHIBITED"
	StatusClientHold               StatusValue = "CLIENT_HOLD"
	StatusClientRenewProhibited    StatusValue = "CLIENT_RENEW_PROHIBITED"
	StatusClientTransferProhibited StatusValue = "CLIENT_TRANSFER_PROHIBITED"
	StatusClientUpdateProhibited   StatusValue = "CLIENT_UPDATE_PROHIBITED"
	StatusServerDeleteProhibited   StatusValue = "SERVER_DELETE_PROHIBITED"
	StatusServerHold               StatusValue = "SERVER_HOLD"
	StatusServerRenewProhibited    StatusValue = "SERVER_RENEW_PROHIBITED"
	StatusServerTransferProhibited StatusValue = "SERVER_TRANSFER_PROHIBITED"
	StatusServerUpdateProhibited   StatusValue = "SERVER_UPDATE_PROHIBITED"
	StatusInactive                 StatusValue = "INACTIVE"
	StatusOK                       StatusValue = "OK"
	StatusPendingDelete            StatusValue = "PENDING_DELETE"
	StatusPendingTransfer          StatusValue = "PENDING_TRANSFER"
	StatusPendingUpdate            StatusValue = "PENDING_UPDATE"
)

func (s StatusValue) String() string { return string(s) }

func (s StatusValue) IsValid() bool {
	switch s {
	case StatusClientDeleteProhibited, StatusClientHold, StatusClientRenewProhibited,
		StatusClientTransferProhibited, StatusClientUpdateProhibited,
		StatusServerDeleteProhibited, StatusServerHold, StatusServerRenewProhibited,
		StatusServerTransferProhibited, StatusServerUpdateProhibited,
		StatusInactive, StatusOK, StatusPendingDelete, StatusPendingTransfer,
		StatusPendingUpdate:
		return true
	}
	return false
}

// ClientSettable reports whether an ordinary registrar may add or remove this
// status via update. Server-side and derived statuses require superuser.
func (s StatusValue) ClientSettable() bool {
	switch s {
	case StatusClientDeleteProhibited, StatusClientHold, StatusClientRenewProhibited,
		StatusClientTransferProhibited, StatusClientUpdateProhibited:
		return true
	}
	return false
}

// AffectsDNS reports whether toggling this status changes what is published
// to DNS (hold statuses take a domain out of the zone).
func (s StatusValue) AffectsDNS() bool {
	return s == StatusClientHold || s == StatusServerHold
}

func (s StatusValue) isPending() bool {
	return s == StatusPendingDelete || s == StatusPendingTransfer || s == StatusPendingUpdate
}

// StatusSet is the set of status values on a domain.
type StatusSet map[StatusValue]struct{}

func NewStatusSet(values ...StatusValue) StatusSet {
	set := make(StatusSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (set StatusSet) Has(v StatusValue) bool {
	_, ok := set[v]
	return ok
}

func (set StatusSet) Add(v StatusValue)    { set[v] = struct{}{} }
func (set StatusSet) Remove(v StatusValue) { delete(set, v) }

// HasAny reports whether any of the given values is present.
func (set StatusSet) HasAny(values ...StatusValue) bool {
	for _, v := range values {
		if set.Has(v) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the set.
func (set StatusSet) Clone() StatusSet {
	out := make(StatusSet, len(set))
	for v := range set {
		out[v] = struct{}{}
	}
	return out
}

// Sorted returns the values in lexical order for stable serialization.
func (set StatusSet) Sorted() []StatusValue {
	out := make([]StatusValue, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateStatuses enforces the mutual-constraint table:
//   - every value is a known status;
//   - OK cannot coexist with any other status;
//   - the pending statuses are mutually exclusive;
//   - PENDING_DELETE excludes every prohibition except the delete locks that
//     may legitimately outlive the request that set them.
func ValidateStatuses(set StatusSet) error {
	pending := 0
	for v := range set {
		if !v.IsValid() {
			return NewValidationError("status", "unknown status value: "+string(v))
		}
		if v.isPending() {
			pending++
		}
	}
	if set.Has(StatusOK) && len(set) > 1 {
		return NewValidationError("status", "OK cannot be combined with other statuses")
	}
	if pending > 1 {
		return NewValidationError("status", "pending statuses are mutually exclusive")
	}
	if set.Has(StatusPendingDelete) {
		for v := range set {
			switch v {
			case StatusPendingDelete, StatusInactive, StatusServerDeleteProhibited,
				StatusClientDeleteProhibited, StatusServerHold, StatusClientHold:
			default:
				return NewValidationError("status", "PENDING_DELETE excludes "+string(v))
			}
		}
	}
	return nil
}
