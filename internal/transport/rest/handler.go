// Package rest is the registrar-facing HTTP API. Handlers decode JSON,
// delegate to the lifecycle and poll services, and translate domain errors
// to HTTP statuses; no business logic lives here.
package rest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/lifecycle"
)

type lifecycleService interface {
	Check(ctx context.Context, in lifecycle.CheckInput) ([]lifecycle.CheckResult, error)
	Renew(ctx context.Context, in lifecycle.RenewInput) (*lifecycle.RenewResult, error)
	Delete(ctx context.Context, in lifecycle.DeleteInput) (*lifecycle.DeleteResult, error)
	Update(ctx context.Context, in lifecycle.UpdateInput) (*lifecycle.UpdateResult, error)
	TransferApprove(ctx context.Context, in lifecycle.TransferResolveInput) (*lifecycle.TransferResult, error)
	TransferReject(ctx context.Context, in lifecycle.TransferResolveInput) (*lifecycle.TransferResult, error)
	TransferCancel(ctx context.Context, in lifecycle.TransferResolveInput) (*lifecycle.TransferResult, error)
	Restore(ctx context.Context, in lifecycle.RestoreInput) (*lifecycle.RestoreResult, error)
}

type pollService interface {
	Poll(ctx context.Context) (*domain.PollMessage, error)
	Ack(ctx context.Context, id uuid.UUID) error
}

// Handler serves the registrar API endpoints.
type Handler struct {
	lifecycle  lifecycleService
	poll       pollService
	checkLimit int
	log        *slog.Logger
}

// NewHandler creates the API handler. checkLimit caps the number of names a
// single check request may carry.
func NewHandler(log *slog.Logger, lc lifecycleService, poll pollService, checkLimit int) *Handler {
	if checkLimit <= 0 {
		checkLimit = 50
	}
	return &Handler{
		lifecycle:  lc,
		poll:       poll,
		checkLimit: checkLimit,
		log:        log.With("component", "rest"),
	}
}
