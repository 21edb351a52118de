package lifecycle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
	"github.com/juniorpayne/registry-core/pkg/clock"
	"github.com/juniorpayne/registry-core/pkg/ctxutil"
)

// ===========================================================================
// Manual mocks (moq-style with func fields)
// ===========================================================================

type mockDomainRepo struct {
	GetByNameFunc          func(ctx context.Context, name string) (*domain.Domain, error)
	GetByNameForUpdateFunc func(ctx context.Context, name string) (*domain.Domain, error)
	UpdateFunc             func(ctx context.Context, d *domain.Domain) error

	updated []*domain.Domain
}

func (m *mockDomainRepo) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (m *mockDomainRepo) GetByNameForUpdate(ctx context.Context, name string) (*domain.Domain, error) {
	if m.GetByNameForUpdateFunc != nil {
		return m.GetByNameForUpdateFunc(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (m *mockDomainRepo) Update(ctx context.Context, d *domain.Domain) error {
	m.updated = append(m.updated, d)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, d)
	}
	return nil
}

type mockBillingRepo struct {
	CreateFunc              func(ctx context.Context, e *domain.BillingEvent) error
	GetFunc                 func(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error)
	UpdateRecurrenceEndFunc func(ctx context.Context, id uuid.UUID, endTime time.Time) error
	DeleteFunc              func(ctx context.Context, id uuid.UUID) error

	created []*domain.BillingEvent
	deleted []uuid.UUID
	closed  map[uuid.UUID]time.Time
}

func (m *mockBillingRepo) Create(ctx context.Context, e *domain.BillingEvent) error {
	m.created = append(m.created, e)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, e)
	}
	return nil
}

func (m *mockBillingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockBillingRepo) UpdateRecurrenceEnd(ctx context.Context, id uuid.UUID, endTime time.Time) error {
	if m.closed == nil {
		m.closed = make(map[uuid.UUID]time.Time)
	}
	m.closed[id] = endTime
	if m.UpdateRecurrenceEndFunc != nil {
		return m.UpdateRecurrenceEndFunc(ctx, id, endTime)
	}
	return nil
}

func (m *mockBillingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// createdOfType filters recorded creates by event type.
func (m *mockBillingRepo) createdOfType(t domain.BillingEventType) []*domain.BillingEvent {
	var out []*domain.BillingEvent
	for _, e := range m.created {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type mockGraceRepo struct {
	CreateFunc             func(ctx context.Context, g *domain.GracePeriod) error
	DeleteFunc             func(ctx context.Context, id uuid.UUID) error
	DeleteByDomainFunc     func(ctx context.Context, domainRepoID uuid.UUID) error
	ListActiveByDomainFunc func(ctx context.Context, domainRepoID uuid.UUID, now time.Time) ([]*domain.GracePeriod, error)

	created        []*domain.GracePeriod
	deleted        []uuid.UUID
	deletedDomains []uuid.UUID
}

func (m *mockGraceRepo) Create(ctx context.Context, g *domain.GracePeriod) error {
	m.created = append(m.created, g)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, g)
	}
	return nil
}

func (m *mockGraceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockGraceRepo) DeleteByDomain(ctx context.Context, domainRepoID uuid.UUID) error {
	m.deletedDomains = append(m.deletedDomains, domainRepoID)
	if m.DeleteByDomainFunc != nil {
		return m.DeleteByDomainFunc(ctx, domainRepoID)
	}
	return nil
}

func (m *mockGraceRepo) ListActiveByDomain(ctx context.Context, domainRepoID uuid.UUID, now time.Time) ([]*domain.GracePeriod, error) {
	if m.ListActiveByDomainFunc != nil {
		return m.ListActiveByDomainFunc(ctx, domainRepoID, now)
	}
	return nil, nil
}

type mockPollService struct {
	EnqueueFunc               func(ctx context.Context, msg *domain.PollMessage) error
	RetractFunc               func(ctx context.Context, id uuid.UUID) error
	HandleRecurringClosedFunc func(ctx context.Context, pollID uuid.UUID, closeTime time.Time) error

	enqueued  []*domain.PollMessage
	retracted []uuid.UUID
}

func (m *mockPollService) Enqueue(ctx context.Context, msg *domain.PollMessage) error {
	m.enqueued = append(m.enqueued, msg)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, msg)
	}
	return nil
}

func (m *mockPollService) Retract(ctx context.Context, id uuid.UUID) error {
	m.retracted = append(m.retracted, id)
	if m.RetractFunc != nil {
		return m.RetractFunc(ctx, id)
	}
	return nil
}

func (m *mockPollService) HandleRecurringClosed(ctx context.Context, pollID uuid.UUID, closeTime time.Time) error {
	if m.HandleRecurringClosedFunc != nil {
		return m.HandleRecurringClosedFunc(ctx, pollID, closeTime)
	}
	return nil
}

type mockTokenService struct {
	ValidateFunc func(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error)
	CheckFunc    func(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error)
	RedeemFunc   func(ctx context.Context, a *domain.AllocationToken, historyID uuid.UUID) error

	redeemed []*domain.AllocationToken
}

func (m *mockTokenService) Validate(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, tok, domainName, tld, registrarID, now)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *mockTokenService) Check(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, tok, domainName, tld, registrarID, now)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *mockTokenService) Redeem(ctx context.Context, a *domain.AllocationToken, historyID uuid.UUID) error {
	m.redeemed = append(m.redeemed, a)
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, a, historyID)
	}
	return nil
}

type mockFeeEngine struct {
	QuoteFunc func(ctx context.Context, in fees.QuoteInput) (fees.Quote, error)

	quotes []fees.QuoteInput
}

func (m *mockFeeEngine) Quote(ctx context.Context, in fees.QuoteInput) (fees.Quote, error) {
	m.quotes = append(m.quotes, in)
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, in)
	}
	return fees.Quote{Total: domain.NewMoney("11.00", "USD"), Currency: "USD"}, nil
}

type mockTLDRepo struct {
	GetFunc func(ctx context.Context, name string) (*domain.TLD, error)
}

func (m *mockTLDRepo) Get(ctx context.Context, name string) (*domain.TLD, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return nil, domain.ErrNotFound
}

type mockHistoryRepo struct {
	CreateFunc func(ctx context.Context, h *domain.HistoryEntry) error

	created []*domain.HistoryEntry
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *domain.HistoryEntry) error {
	m.created = append(m.created, h)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, h)
	}
	return nil
}

type mockReservedSource struct {
	ListReservedFunc func(ctx context.Context, tld, label string) ([]domain.ReservedEntry, error)
}

func (m *mockReservedSource) ListReserved(ctx context.Context, tld, label string) ([]domain.ReservedEntry, error) {
	if m.ListReservedFunc != nil {
		return m.ListReservedFunc(ctx, tld, label)
	}
	return nil, nil
}

type mockDNSPublisher struct {
	published []dns.RefreshEvent
}

func (m *mockDNSPublisher) PublishRefresh(ctx context.Context, ev dns.RefreshEvent) {
	m.published = append(m.published, ev)
}

type mockTaskEnqueuer struct {
	EnqueueFunc func(ctx context.Context, resourceKey string, now time.Time, resaveTimes ...time.Time) error

	enqueued [][]time.Time
}

func (m *mockTaskEnqueuer) Enqueue(ctx context.Context, resourceKey string, now time.Time, resaveTimes ...time.Time) error {
	m.enqueued = append(m.enqueued, resaveTimes)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, resourceKey, now, resaveTimes...)
	}
	return nil
}

type mockTxManager struct {
	RunInTxFunc func(ctx context.Context, fn func(context.Context) error) error
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTxFunc != nil {
		return m.RunInTxFunc(ctx, fn)
	}
	return fn(ctx)
}

// ===========================================================================
// Helpers
// ===========================================================================

// testNow is the pinned instant every flow test runs at.
var testNow = time.Date(2000, time.April, 3, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	domains  *mockDomainRepo
	billing  *mockBillingRepo
	grace    *mockGraceRepo
	poll     *mockPollService
	tokens   *mockTokenService
	fees     *mockFeeEngine
	tlds     *mockTLDRepo
	history  *mockHistoryRepo
	reserved *mockReservedSource
	dns      *mockDNSPublisher
	tasks    *mockTaskEnqueuer
	tx       *mockTxManager
	clock    *clock.Fake
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		domains:  &mockDomainRepo{},
		billing:  &mockBillingRepo{},
		grace:    &mockGraceRepo{},
		poll:     &mockPollService{},
		tokens:   &mockTokenService{},
		fees:     &mockFeeEngine{},
		tlds:     &mockTLDRepo{},
		history:  &mockHistoryRepo{},
		reserved: &mockReservedSource{},
		dns:      &mockDNSPublisher{},
		tasks:    &mockTaskEnqueuer{},
		tx:       &mockTxManager{},
		clock:    clock.NewFake(testNow),
	}
	svc := NewService(
		slog.Default(),
		deps.domains,
		deps.billing,
		deps.grace,
		deps.poll,
		deps.tokens,
		deps.fees,
		deps.tlds,
		deps.history,
		deps.reserved,
		deps.dns,
		deps.tasks,
		deps.tx,
		deps.clock,
	)
	return svc, deps
}

func registrarCtx(registrarID string) context.Context {
	return ctxutil.WithRegistrarID(context.Background(), registrarID)
}

func superuserCtx(registrarID string) context.Context {
	return ctxutil.WithSuperuser(registrarCtx(registrarID), true)
}

func mustTransitions[V any](t *testing.T, m map[time.Time]V) domain.TimedTransitions[V] {
	t.Helper()
	tt, err := domain.NewTimedTransitions(m)
	require.NoError(t, err)
	return tt
}

// makeTLD builds a general-availability .example TLD with the standard test
// policy durations.
func makeTLD(t *testing.T) *domain.TLD {
	return &domain.TLD{
		Name:     "example",
		Currency: "USD",

		AddGracePeriod:          5 * 24 * time.Hour,
		RenewGracePeriod:        5 * 24 * time.Hour,
		TransferGracePeriod:     5 * 24 * time.Hour,
		AutorenewGracePeriod:    45 * 24 * time.Hour,
		RedemptionGracePeriod:   30 * 24 * time.Hour,
		PendingDeleteLength:     5 * 24 * time.Hour,
		AutomaticTransferLength: 5 * 24 * time.Hour,

		CreateCosts: mustTransitions(t, map[time.Time]domain.Money{
			domain.StartOfTime: domain.NewMoney("13.00", "USD"),
		}),
		RenewCosts: mustTransitions(t, map[time.Time]domain.Money{
			domain.StartOfTime: domain.NewMoney("11.00", "USD"),
		}),
		PhaseSchedule: mustTransitions(t, map[time.Time]domain.TLDPhase{
			domain.StartOfTime: domain.PhaseGeneralAvailability,
		}),

		RestoreCost:      domain.NewMoney("17.00", "USD"),
		ServerStatusCost: domain.NewMoney("20.00", "USD"),
	}
}

// makeDomain builds an active domain sponsored by registrar-a, expiring two
// years out from testNow.
func makeDomain() *domain.Domain {
	return &domain.Domain{
		RepoID:         uuid.New(),
		Name:           "fluffy.example",
		TLD:            "example",
		SponsorID:      "registrar-a",
		Statuses:       domain.NewStatusSet(domain.StatusOK),
		CreationTime:   testNow.AddDate(-1, 0, 0),
		ExpirationTime: testNow.AddDate(2, 0, 0),
		Nameservers:    []string{"ns1.fluffy.example"},
		Contacts: map[domain.ContactRole]string{
			domain.ContactRoleAdmin: "contact-1",
			domain.ContactRoleTech:  "contact-2",
		},
	}
}

// wireDomain makes deps serve d and its TLD for every lookup.
func wireDomain(deps *testDeps, d *domain.Domain, t *domain.TLD) {
	deps.domains.GetByNameFunc = func(_ context.Context, name string) (*domain.Domain, error) {
		if name == d.Name {
			return d, nil
		}
		return nil, domain.ErrNotFound
	}
	deps.domains.GetByNameForUpdateFunc = deps.domains.GetByNameFunc
	deps.tlds.GetFunc = func(_ context.Context, name string) (*domain.TLD, error) {
		if name == t.Name {
			return t, nil
		}
		return nil, domain.ErrNotFound
	}
}

// ===========================================================================
// Check
// ===========================================================================

func TestService_Check_NoAuth(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Check(context.Background(), CheckInput{Names: []string{"a.example"}})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestService_Check_EmptyNames(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Check(registrarCtx("registrar-a"), CheckInput{})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_Check_UnknownTLD(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{Names: []string{"a.nosuchtld"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Available)
	assert.Equal(t, "Unknown TLD", results[0].Reason)
}

func TestService_Check_InUse(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	wireDomain(deps, makeDomain(), makeTLD(t))

	results, err := svc.Check(registrarCtx("registrar-b"), CheckInput{Names: []string{"fluffy.example"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Available)
	assert.Equal(t, "In use", results[0].Reason)
}

func TestService_Check_SoftDeletedIsAvailable(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	gone := testNow.Add(-time.Hour)
	d.DeletionTime = &gone
	wireDomain(deps, d, makeTLD(t))

	results, err := svc.Check(registrarCtx("registrar-b"), CheckInput{Names: []string{"fluffy.example"}})
	require.NoError(t, err)
	assert.True(t, results[0].Available)
}

func TestService_Check_Reserved(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return makeTLD(t), nil
	}
	deps.reserved.ListReservedFunc = func(_ context.Context, _, label string) ([]domain.ReservedEntry, error) {
		assert.Equal(t, "police", label)
		return []domain.ReservedEntry{
			{TLD: "example", Label: "police", Type: domain.ReservationAllowedInSunrise},
			{TLD: "example", Label: "police", Type: domain.ReservationFullyBlocked},
		}, nil
	}

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{Names: []string{"police.example"}})
	require.NoError(t, err)
	assert.False(t, results[0].Available)
	assert.Equal(t, "Reserved", results[0].Reason)
}

func TestService_Check_SunriseReservationOpenDuringSunrise(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)
	tld.PhaseSchedule = mustTransitions(t, map[time.Time]domain.TLDPhase{
		domain.StartOfTime: domain.PhaseSunrise,
	})
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) { return tld, nil }
	deps.reserved.ListReservedFunc = func(_ context.Context, _, _ string) ([]domain.ReservedEntry, error) {
		return []domain.ReservedEntry{
			{TLD: "example", Label: "brand", Type: domain.ReservationAllowedInSunrise},
		}, nil
	}

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{Names: []string{"brand.example"}})
	require.NoError(t, err)
	assert.True(t, results[0].Available)
}

func TestService_Check_TokenApplies(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return makeTLD(t), nil
	}
	deps.tokens.CheckFunc = func(_ context.Context, tok, name, tld, registrarID string, _ time.Time) (*domain.AllocationToken, error) {
		assert.Equal(t, "promo-1", tok)
		assert.Equal(t, "free.example", name)
		assert.Equal(t, "registrar-a", registrarID)
		return &domain.AllocationToken{Token: tok}, nil
	}

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{
		Names:           []string{"free.example"},
		AllocationToken: "promo-1",
	})
	require.NoError(t, err)
	assert.True(t, results[0].Available)
	assert.True(t, results[0].TokenApplies)
}

func TestService_Check_InvalidTokenDoesNotApply(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return makeTLD(t), nil
	}

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{
		Names:           []string{"free.example"},
		AllocationToken: "expired-promo",
	})
	require.NoError(t, err)
	assert.True(t, results[0].Available)
	assert.False(t, results[0].TokenApplies)
}

func TestService_Check_WithFees(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return makeTLD(t), nil
	}
	deps.fees.QuoteFunc = func(_ context.Context, in fees.QuoteInput) (fees.Quote, error) {
		assert.Equal(t, domain.ReasonCreate, in.Reason)
		assert.Equal(t, 1, in.Years)
		assert.Equal(t, "rich", in.Label)
		return fees.Quote{Total: domain.NewMoney("150.00", "USD"), Premium: true, Currency: "USD"}, nil
	}

	results, err := svc.Check(registrarCtx("registrar-a"), CheckInput{
		Names:    []string{"rich.example"},
		WithFees: true,
	})
	require.NoError(t, err)
	require.NotNil(t, results[0].Fee)
	assert.True(t, results[0].Fee.Equal(domain.NewMoney("150.00", "USD")))
	assert.True(t, results[0].Premium)
}
