// Package lifecycle implements the domain lifecycle command flows: check,
// renew, delete, update, transfer resolution, and restore. Each flow runs in
// one serializable transaction scoped to a single domain and emits a mutually
// consistent set of billing, grace period, poll message, and history changes.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
	"github.com/juniorpayne/registry-core/pkg/clock"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type domainRepo interface {
	GetByName(ctx context.Context, name string) (*domain.Domain, error)
	GetByNameForUpdate(ctx context.Context, name string) (*domain.Domain, error)
	Update(ctx context.Context, d *domain.Domain) error
}

type billingRepo interface {
	Create(ctx context.Context, e *domain.BillingEvent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error)
	UpdateRecurrenceEnd(ctx context.Context, id uuid.UUID, endTime time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type graceRepo interface {
	Create(ctx context.Context, g *domain.GracePeriod) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByDomain(ctx context.Context, domainRepoID uuid.UUID) error
	ListActiveByDomain(ctx context.Context, domainRepoID uuid.UUID, now time.Time) ([]*domain.GracePeriod, error)
}

type pollService interface {
	Enqueue(ctx context.Context, m *domain.PollMessage) error
	Retract(ctx context.Context, id uuid.UUID) error
	HandleRecurringClosed(ctx context.Context, pollID uuid.UUID, closeTime time.Time) error
}

type tokenService interface {
	Validate(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error)
	Check(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error)
	Redeem(ctx context.Context, a *domain.AllocationToken, historyID uuid.UUID) error
}

type feeEngine interface {
	Quote(ctx context.Context, in fees.QuoteInput) (fees.Quote, error)
}

type tldRepo interface {
	Get(ctx context.Context, name string) (*domain.TLD, error)
}

type historyRepo interface {
	Create(ctx context.Context, h *domain.HistoryEntry) error
}

type reservedSource interface {
	ListReserved(ctx context.Context, tld, label string) ([]domain.ReservedEntry, error)
}

type dnsPublisher interface {
	PublishRefresh(ctx context.Context, ev dns.RefreshEvent)
}

type taskEnqueuer interface {
	Enqueue(ctx context.Context, resourceKey string, now time.Time, resaveTimes ...time.Time) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service orchestrates the lifecycle flows.
type Service struct {
	domains  domainRepo
	billing  billingRepo
	grace    graceRepo
	poll     pollService
	tokens   tokenService
	fees     feeEngine
	tlds     tldRepo
	history  historyRepo
	reserved reservedSource
	dns      dnsPublisher
	tasks    taskEnqueuer
	tx       txManager
	clock    clock.Clock
	log      *slog.Logger
}

func NewService(
	log *slog.Logger,
	domains domainRepo,
	billing billingRepo,
	grace graceRepo,
	poll pollService,
	tokens tokenService,
	feeEngine feeEngine,
	tlds tldRepo,
	history historyRepo,
	reserved reservedSource,
	dnsPub dnsPublisher,
	tasks taskEnqueuer,
	tx txManager,
	clk clock.Clock,
) *Service {
	return &Service{
		domains:  domains,
		billing:  billing,
		grace:    grace,
		poll:     poll,
		tokens:   tokens,
		fees:     feeEngine,
		tlds:     tlds,
		history:  history,
		reserved: reserved,
		dns:      dnsPub,
		tasks:    tasks,
		tx:       tx,
		clock:    clk,
		log:      log.With("service", "lifecycle"),
	}
}
