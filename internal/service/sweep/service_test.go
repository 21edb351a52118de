package sweep

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/pkg/clock"
)

// ===========================================================================
// Manual mocks (moq-style with func fields)
// ===========================================================================

type mockDomainRepo struct {
	GetByNameForUpdateFunc func(ctx context.Context, name string) (*domain.Domain, error)
	UpdateFunc             func(ctx context.Context, d *domain.Domain) error
	FindDeletableFunc      func(ctx context.Context, now time.Time, limit int) ([]string, error)

	updated []*domain.Domain
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

func (m *mockDomainRepo) FindDeletable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if m.FindDeletableFunc != nil {
		return m.FindDeletableFunc(ctx, now, limit)
	}
	return nil, nil
}

type mockBillingRepo struct {
	CreateFunc            func(ctx context.Context, e *domain.BillingEvent) error
	GetFunc               func(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error)
	AdvanceEventTimeFunc  func(ctx context.Context, id uuid.UUID, eventTime time.Time) error
	FindDueRecurringsFunc func(ctx context.Context, now time.Time, limit int) ([]*domain.BillingEvent, error)

	created  []*domain.BillingEvent
	advanced map[uuid.UUID]time.Time
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

func (m *mockBillingRepo) AdvanceEventTime(ctx context.Context, id uuid.UUID, eventTime time.Time) error {
	if m.advanced == nil {
		m.advanced = make(map[uuid.UUID]time.Time)
	}
	m.advanced[id] = eventTime
	if m.AdvanceEventTimeFunc != nil {
		return m.AdvanceEventTimeFunc(ctx, id, eventTime)
	}
	return nil
}

func (m *mockBillingRepo) FindDueRecurrings(ctx context.Context, now time.Time, limit int) ([]*domain.BillingEvent, error) {
	if m.FindDueRecurringsFunc != nil {
		return m.FindDueRecurringsFunc(ctx, now, limit)
	}
	return nil, nil
}

type mockGraceRepo struct {
	CreateFunc         func(ctx context.Context, g *domain.GracePeriod) error
	DeleteByDomainFunc func(ctx context.Context, domainRepoID uuid.UUID) error

	created        []*domain.GracePeriod
	deletedDomains []uuid.UUID
}

func (m *mockGraceRepo) Create(ctx context.Context, g *domain.GracePeriod) error {
	m.created = append(m.created, g)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, g)
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

type mockPollRepo struct {
	CreateFunc func(ctx context.Context, msg *domain.PollMessage) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*domain.PollMessage, error)

	created []*domain.PollMessage
}

func (m *mockPollRepo) Create(ctx context.Context, msg *domain.PollMessage) error {
	m.created = append(m.created, msg)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, msg)
	}
	return nil
}

func (m *mockPollRepo) Get(ctx context.Context, id uuid.UUID) (*domain.PollMessage, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
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

type mockTLDRepo struct {
	GetFunc func(ctx context.Context, name string) (*domain.TLD, error)
}

func (m *mockTLDRepo) Get(ctx context.Context, name string) (*domain.TLD, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return nil, domain.ErrNotFound
}

type mockTaskQueue struct {
	CompleteFunc func(ctx context.Context, resourceKey string) error

	completed []string
}

func (m *mockTaskQueue) Complete(ctx context.Context, resourceKey string) error {
	m.completed = append(m.completed, resourceKey)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, resourceKey)
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

var sweepNow = time.Date(2000, time.April, 3, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	domains *mockDomainRepo
	billing *mockBillingRepo
	grace   *mockGraceRepo
	poll    *mockPollRepo
	history *mockHistoryRepo
	tlds    *mockTLDRepo
	tasks   *mockTaskQueue
	tx      *mockTxManager
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		domains: &mockDomainRepo{},
		billing: &mockBillingRepo{},
		grace:   &mockGraceRepo{},
		poll:    &mockPollRepo{},
		history: &mockHistoryRepo{},
		tlds:    &mockTLDRepo{},
		tasks:   &mockTaskQueue{},
		tx:      &mockTxManager{},
	}
	svc := NewService(
		slog.Default(),
		deps.domains,
		deps.billing,
		deps.grace,
		deps.poll,
		deps.history,
		deps.tlds,
		deps.tasks,
		deps.tx,
		clock.NewFake(sweepNow),
		10,
		nil,
	)
	return svc, deps
}

func makeTLD(t *testing.T) *domain.TLD {
	t.Helper()
	renewCosts, err := domain.NewTimedTransitions(map[time.Time]domain.Money{
		domain.StartOfTime: domain.NewMoney("11.00", "USD"),
	})
	require.NoError(t, err)
	return &domain.TLD{
		Name:                 "example",
		Currency:             "USD",
		AutorenewGracePeriod: 45 * 24 * time.Hour,
		RenewCosts:           renewCosts,
	}
}

func makeDomain(name string) *domain.Domain {
	return &domain.Domain{
		RepoID:         uuid.New(),
		Name:           name,
		TLD:            "example",
		SponsorID:      "registrar-a",
		Statuses:       domain.NewStatusSet(domain.StatusOK),
		ExpirationTime: sweepNow,
	}
}

// ===========================================================================
// FinalizePendingDeletes
// ===========================================================================

func TestService_FinalizePendingDeletes_Success(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)

	d := makeDomain("gone.example")
	deletion := sweepNow.Add(-time.Hour)
	d.DeletionTime = &deletion
	d.Statuses = domain.NewStatusSet(domain.StatusInactive, domain.StatusPendingDelete)

	deps.domains.FindDeletableFunc = func(_ context.Context, now time.Time, limit int) ([]string, error) {
		assert.Equal(t, sweepNow, now)
		assert.Equal(t, 10, limit)
		return []string{d.Name}, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, name string) (*domain.Domain, error) {
		return d, nil
	}

	require.NoError(t, svc.FinalizePendingDeletes(context.Background()))

	require.Len(t, deps.history.created, 1)
	assert.Equal(t, domain.HistoryDomainDeleteFinalize, deps.history.created[0].Type)
	assert.Equal(t, []uuid.UUID{d.RepoID}, deps.grace.deletedDomains)
	require.Len(t, deps.domains.updated, 1)
	assert.Empty(t, deps.domains.updated[0].Statuses)
	assert.Equal(t, []string{d.Name}, deps.tasks.completed)
}

func TestService_FinalizePendingDeletes_StaleCandidateSkipped(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)

	// The candidate was restored between the index query and the lock: still
	// listed, but no longer pending delete.
	d := makeDomain("revived.example")
	deps.domains.FindDeletableFunc = func(_ context.Context, _ time.Time, _ int) ([]string, error) {
		return []string{d.Name}, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}

	require.NoError(t, svc.FinalizePendingDeletes(context.Background()))

	assert.Empty(t, deps.history.created)
	assert.Empty(t, deps.domains.updated)
	// The stale resave tasks are still cleared.
	assert.Equal(t, []string{d.Name}, deps.tasks.completed)
}

func TestService_FinalizePendingDeletes_DeletionNotYetDue(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)

	d := makeDomain("later.example")
	deletion := sweepNow.Add(time.Hour)
	d.DeletionTime = &deletion
	d.Statuses = domain.NewStatusSet(domain.StatusInactive, domain.StatusPendingDelete)

	deps.domains.FindDeletableFunc = func(_ context.Context, _ time.Time, _ int) ([]string, error) {
		return []string{d.Name}, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}

	require.NoError(t, svc.FinalizePendingDeletes(context.Background()))
	assert.Empty(t, deps.domains.updated)
}

func TestService_FinalizePendingDeletes_FailureIsolatedPerDomain(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)

	bad := makeDomain("bad.example")
	good := makeDomain("good.example")
	deletion := sweepNow.Add(-time.Hour)
	for _, d := range []*domain.Domain{bad, good} {
		d.DeletionTime = &deletion
		d.Statuses = domain.NewStatusSet(domain.StatusInactive, domain.StatusPendingDelete)
	}

	deps.domains.FindDeletableFunc = func(_ context.Context, _ time.Time, _ int) ([]string, error) {
		return []string{bad.Name, good.Name}, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, name string) (*domain.Domain, error) {
		if name == bad.Name {
			return bad, nil
		}
		return good, nil
	}
	deps.domains.UpdateFunc = func(_ context.Context, d *domain.Domain) error {
		if d.Name == bad.Name {
			return assert.AnError
		}
		return nil
	}

	require.NoError(t, svc.FinalizePendingDeletes(context.Background()))

	// The good domain is finalized despite the bad one failing.
	assert.Contains(t, deps.grace.deletedDomains, good.RepoID)
	assert.Equal(t, []string{good.Name}, deps.tasks.completed)
}

// ===========================================================================
// ExpandAutorenews
// ===========================================================================

func TestService_ExpandAutorenews_Success(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)

	d := makeDomain("auto.example")
	occurrence := sweepNow.Add(-time.Hour)
	recurring := domain.NewRecurring(d, "registrar-a", occurrence,
		domain.RenewalPriceDefault, nil, uuid.New())
	d.ExpirationTime = occurrence
	d.AutorenewID = &recurring.ID

	deps.billing.FindDueRecurringsFunc = func(_ context.Context, _ time.Time, _ int) ([]*domain.BillingEvent, error) {
		return []*domain.BillingEvent{recurring}, nil
	}
	deps.billing.GetFunc = func(_ context.Context, id uuid.UUID) (*domain.BillingEvent, error) {
		return recurring, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return tld, nil
	}

	require.NoError(t, svc.ExpandAutorenews(context.Background()))

	// History entry reports one renew year at grace end.
	require.Len(t, deps.history.created, 1)
	h := deps.history.created[0]
	assert.Equal(t, domain.HistoryDomainAutorenew, h.Type)
	require.Len(t, h.Records, 1)
	assert.Equal(t, domain.FieldNetRenewsPerYear, h.Records[0].Field)
	assert.Equal(t, 1, h.Records[0].PeriodYears)
	assert.Equal(t, occurrence.Add(tld.AutorenewGracePeriod), h.Records[0].ReportingTime)

	// The concrete charge is dated at the occurrence, not at sweep time.
	require.Len(t, deps.billing.created, 1)
	charge := deps.billing.created[0]
	assert.Equal(t, domain.BillingOneTime, charge.Type)
	assert.Equal(t, domain.ReasonRenew, charge.Reason)
	assert.Equal(t, occurrence, charge.EventTime)
	assert.Equal(t, 1, charge.PeriodYears)
	assert.True(t, charge.Cost.Equal(domain.NewMoney("11.00", "USD")))

	require.Len(t, deps.grace.created, 1)
	assert.Equal(t, domain.GraceAutoRenew, deps.grace.created[0].Type)
	assert.Equal(t, occurrence.Add(tld.AutorenewGracePeriod), deps.grace.created[0].ExpirationTime)

	// The recurrence advances a year; the domain is extended a year.
	assert.Equal(t, occurrence.AddDate(1, 0, 0), deps.billing.advanced[recurring.ID])
	require.Len(t, deps.domains.updated, 1)
	assert.Equal(t, occurrence.AddDate(1, 0, 0), deps.domains.updated[0].ExpirationTime)
}

func TestService_ExpandAutorenews_ClosedSinceCandidateQuery(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)

	d := makeDomain("closed.example")
	recurring := domain.NewRecurring(d, "registrar-a", sweepNow.Add(-time.Hour),
		domain.RenewalPriceDefault, nil, uuid.New())

	deps.billing.FindDueRecurringsFunc = func(_ context.Context, _ time.Time, _ int) ([]*domain.BillingEvent, error) {
		return []*domain.BillingEvent{recurring}, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}
	// Under the lock the recurrence turns out closed.
	deps.billing.GetFunc = func(_ context.Context, _ uuid.UUID) (*domain.BillingEvent, error) {
		closed := *recurring
		closed.RecurrenceEndTime = sweepNow.Add(-30 * time.Minute)
		return &closed, nil
	}

	require.NoError(t, svc.ExpandAutorenews(context.Background()))

	assert.Empty(t, deps.billing.created)
	assert.Empty(t, deps.history.created)
	assert.Empty(t, deps.domains.updated)
}

func TestService_ExpandAutorenews_SpecifiedPriceHonored(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)

	d := makeDomain("locked.example")
	locked := domain.NewMoney("7.50", "USD")
	recurring := domain.NewRecurring(d, "registrar-a", sweepNow.Add(-time.Hour),
		domain.RenewalPriceSpecified, &locked, uuid.New())

	deps.billing.FindDueRecurringsFunc = func(_ context.Context, _ time.Time, _ int) ([]*domain.BillingEvent, error) {
		return []*domain.BillingEvent{recurring}, nil
	}
	deps.billing.GetFunc = func(_ context.Context, _ uuid.UUID) (*domain.BillingEvent, error) {
		return recurring, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return tld, nil
	}

	require.NoError(t, svc.ExpandAutorenews(context.Background()))

	require.Len(t, deps.billing.created, 1)
	assert.True(t, deps.billing.created[0].Cost.Equal(locked))
}

func TestService_ExpandAutorenews_RecreatesAcknowledgedPollMessage(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)

	d := makeDomain("acked.example")
	pollID := uuid.New()
	d.AutorenewPollID = &pollID
	recurring := domain.NewRecurring(d, "registrar-a", sweepNow.Add(-time.Hour),
		domain.RenewalPriceDefault, nil, uuid.New())

	deps.billing.FindDueRecurringsFunc = func(_ context.Context, _ time.Time, _ int) ([]*domain.BillingEvent, error) {
		return []*domain.BillingEvent{recurring}, nil
	}
	deps.billing.GetFunc = func(_ context.Context, _ uuid.UUID) (*domain.BillingEvent, error) {
		return recurring, nil
	}
	deps.domains.GetByNameForUpdateFunc = func(_ context.Context, _ string) (*domain.Domain, error) {
		return d, nil
	}
	deps.tlds.GetFunc = func(_ context.Context, _ string) (*domain.TLD, error) {
		return tld, nil
	}
	// The registrar acknowledged the previous occurrence away.
	deps.poll.GetFunc = func(_ context.Context, _ uuid.UUID) (*domain.PollMessage, error) {
		return nil, domain.ErrNotFound
	}

	require.NoError(t, svc.ExpandAutorenews(context.Background()))

	require.Len(t, deps.poll.created, 1)
	assert.Equal(t, domain.PollAutorenew, deps.poll.created[0].Type)
	require.Len(t, deps.domains.updated, 1)
	require.NotNil(t, deps.domains.updated[0].AutorenewPollID)
	assert.Equal(t, deps.poll.created[0].ID, *deps.domains.updated[0].AutorenewPollID)
}
