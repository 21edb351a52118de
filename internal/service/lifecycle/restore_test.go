package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
)

// makePendingDeleteDomain is a domain deleted yesterday, sitting in its
// redemption window with deletion scheduled next month.
func makePendingDeleteDomain() (*domain.Domain, *domain.GracePeriod) {
	d := makeDomain()
	d.Statuses = domain.NewStatusSet(domain.StatusInactive, domain.StatusPendingDelete)
	d.Nameservers = nil
	deletion := testNow.Add(34 * 24 * time.Hour)
	d.DeletionTime = &deletion
	redemption := domain.NewGracePeriod(domain.GraceRedemption, d.RepoID, d.SponsorID,
		testNow.Add(29*24*time.Hour), nil)
	return d, redemption
}

func TestService_Restore_NoAuth(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Restore(context.Background(), RestoreInput{DomainName: "fluffy.example"})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestService_Restore_NotPendingDelete(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Restore(registrarCtx("registrar-a"), RestoreInput{DomainName: d.Name})
	require.ErrorIs(t, err, domain.ErrPolicyViolation)
}

func TestService_Restore_RedemptionWindowClosed(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d, _ := makePendingDeleteDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Restore(registrarCtx("registrar-a"), RestoreInput{DomainName: d.Name})
	require.ErrorIs(t, err, domain.ErrPolicyViolation)
}

func TestService_Restore_NotSponsor(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d, _ := makePendingDeleteDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Restore(registrarCtx("registrar-b"), RestoreInput{DomainName: d.Name})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestService_Restore_Success(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)
	d, redemption := makePendingDeleteDomain()
	oldExpiration := d.ExpirationTime
	wireDomain(deps, d, tld)
	deps.grace.ListActiveByDomainFunc = func(_ context.Context, _ uuid.UUID, _ time.Time) ([]*domain.GracePeriod, error) {
		return []*domain.GracePeriod{redemption}, nil
	}
	deps.fees.QuoteFunc = func(_ context.Context, in fees.QuoteInput) (fees.Quote, error) {
		assert.Equal(t, domain.ReasonRestore, in.Reason)
		assert.Equal(t, 1, in.Years)
		return fees.Quote{Total: domain.NewMoney("28.00", "USD"), Currency: "USD"}, nil
	}

	result, err := svc.Restore(registrarCtx("registrar-a"), RestoreInput{DomainName: d.Name})
	require.NoError(t, err)

	assert.Equal(t, oldExpiration.AddDate(1, 0, 0), result.ExpirationTime)
	assert.True(t, result.Cost.Equal(domain.NewMoney("28.00", "USD")))

	require.Len(t, deps.history.created, 1)
	records := deps.history.created[0].Records
	require.Len(t, records, 1)
	assert.Equal(t, domain.FieldRestoredDomains, records[0].Field)

	// Restores bill immediately: billing time is now and no window opens on it.
	oneTimes := deps.billing.createdOfType(domain.BillingOneTime)
	require.Len(t, oneTimes, 1)
	assert.Equal(t, domain.ReasonRestore, oneTimes[0].Reason)
	assert.Equal(t, testNow, oneTimes[0].BillingTime)
	assert.Contains(t, deps.grace.deleted, redemption.ID)
	assert.Empty(t, deps.grace.created)

	// A fresh autorenew anchors at the extended expiration.
	recurrings := deps.billing.createdOfType(domain.BillingRecurring)
	require.Len(t, recurrings, 1)
	assert.Equal(t, oldExpiration.AddDate(1, 0, 0), recurrings[0].EventTime)
	assert.Equal(t, "registrar-a", recurrings[0].RegistrarID)

	require.Len(t, deps.domains.updated, 1)
	saved := deps.domains.updated[0]
	assert.False(t, saved.Statuses.Has(domain.StatusPendingDelete))
	assert.True(t, saved.Statuses.Has(domain.StatusInactive))
	assert.Nil(t, saved.DeletionTime)

	require.Len(t, deps.dns.published, 1)
	assert.Equal(t, d.Name, deps.dns.published[0].DomainName)
}

func TestService_Restore_RestoredWithNameserversIsOK(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d, redemption := makePendingDeleteDomain()
	d.Nameservers = []string{"ns1.fluffy.example"}
	d.Statuses = domain.NewStatusSet(domain.StatusPendingDelete)
	wireDomain(deps, d, makeTLD(t))
	deps.grace.ListActiveByDomainFunc = func(_ context.Context, _ uuid.UUID, _ time.Time) ([]*domain.GracePeriod, error) {
		return []*domain.GracePeriod{redemption}, nil
	}

	_, err := svc.Restore(registrarCtx("registrar-a"), RestoreInput{DomainName: d.Name})
	require.NoError(t, err)

	saved := deps.domains.updated[0]
	assert.True(t, saved.Statuses.Has(domain.StatusOK))
	assert.False(t, saved.Statuses.Has(domain.StatusInactive))
}
