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

func TestService_Renew_NoAuth(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Renew(context.Background(), RenewInput{
		DomainName:        "fluffy.example",
		CurrentExpiration: testNow,
		Years:             1,
	})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestService_Renew_InvalidYears(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	for _, years := range []int{0, -1, 11} {
		_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
			DomainName:        "fluffy.example",
			CurrentExpiration: testNow,
			Years:             years,
		})
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestService_Renew_NotSponsor(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Renew(registrarCtx("registrar-b"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
	})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestService_Renew_ExpirationMismatch(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime.AddDate(0, 0, 1),
		Years:             1,
	})
	require.ErrorIs(t, err, domain.ErrExpirationMismatch)
	assert.Empty(t, deps.history.created)
}

func TestService_Renew_StatusProhibited(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	d.Statuses = domain.NewStatusSet(domain.StatusClientRenewProhibited)
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
	})
	require.ErrorIs(t, err, domain.ErrStatusProhibited)
}

func TestService_Renew_SuperuserBypassesClientLockOnly(t *testing.T) {
	t.Parallel()

	t.Run("client lock bypassed", func(t *testing.T) {
		svc, deps := newTestService(t)
		d := makeDomain()
		d.Statuses = domain.NewStatusSet(domain.StatusClientRenewProhibited)
		wireDomain(deps, d, makeTLD(t))

		_, err := svc.Renew(superuserCtx("admin"), RenewInput{
			DomainName:        d.Name,
			CurrentExpiration: d.ExpirationTime,
			Years:             1,
		})
		require.NoError(t, err)
	})

	t.Run("server lock holds", func(t *testing.T) {
		svc, deps := newTestService(t)
		d := makeDomain()
		d.Statuses = domain.NewStatusSet(domain.StatusServerRenewProhibited)
		wireDomain(deps, d, makeTLD(t))

		_, err := svc.Renew(superuserCtx("admin"), RenewInput{
			DomainName:        d.Name,
			CurrentExpiration: d.ExpirationTime,
			Years:             1,
		})
		require.ErrorIs(t, err, domain.ErrStatusProhibited)
	})
}

func TestService_Renew_Success(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)
	d := makeDomain()
	oldExpiration := d.ExpirationTime
	wireDomain(deps, d, tld)

	deps.fees.QuoteFunc = func(_ context.Context, in fees.QuoteInput) (fees.Quote, error) {
		assert.Equal(t, domain.ReasonRenew, in.Reason)
		assert.Equal(t, 2, in.Years)
		assert.Equal(t, "fluffy", in.Label)
		return fees.Quote{Total: domain.NewMoney("22.00", "USD"), Currency: "USD"}, nil
	}

	result, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: oldExpiration,
		Years:             2,
	})
	require.NoError(t, err)

	assert.Equal(t, oldExpiration.AddDate(2, 0, 0), result.ExpirationTime)
	assert.True(t, result.Cost.Equal(domain.NewMoney("22.00", "USD")))

	// History entry carries the NET_RENEWS delta reported at grace end.
	require.Len(t, deps.history.created, 1)
	h := deps.history.created[0]
	assert.Equal(t, domain.HistoryDomainRenew, h.Type)
	require.Len(t, h.Records, 1)
	rec := h.Records[0]
	assert.Equal(t, domain.FieldNetRenewsPerYear, rec.Field)
	assert.Equal(t, 2, rec.PeriodYears)
	assert.Equal(t, 1, rec.Amount)
	assert.Equal(t, testNow.Add(tld.RenewGracePeriod), rec.ReportingTime)

	// One charge, one replacement recurrence.
	oneTimes := deps.billing.createdOfType(domain.BillingOneTime)
	require.Len(t, oneTimes, 1)
	charge := oneTimes[0]
	assert.Equal(t, domain.ReasonRenew, charge.Reason)
	assert.Equal(t, "registrar-a", charge.RegistrarID)
	assert.Equal(t, testNow.Add(tld.RenewGracePeriod), charge.BillingTime)
	assert.Equal(t, h.ID, charge.HistoryEntryID)

	recurrings := deps.billing.createdOfType(domain.BillingRecurring)
	require.Len(t, recurrings, 1)
	assert.Equal(t, oldExpiration.AddDate(2, 0, 0), recurrings[0].EventTime)

	// RENEW grace window references the charge.
	require.Len(t, deps.grace.created, 1)
	grace := deps.grace.created[0]
	assert.Equal(t, domain.GraceRenew, grace.Type)
	require.NotNil(t, grace.BillingEventID)
	assert.Equal(t, charge.ID, *grace.BillingEventID)
	assert.Equal(t, testNow.Add(tld.RenewGracePeriod), grace.ExpirationTime)

	// New autorenew poll message anchored at the extended expiration.
	require.Len(t, deps.poll.enqueued, 1)
	assert.Equal(t, domain.PollAutorenew, deps.poll.enqueued[0].Type)
	assert.Equal(t, oldExpiration.AddDate(2, 0, 0), deps.poll.enqueued[0].EventTime)

	require.Len(t, deps.domains.updated, 1)
	assert.Equal(t, oldExpiration.AddDate(2, 0, 0), deps.domains.updated[0].ExpirationTime)
}

func TestService_Renew_ClosesPriorRecurrence(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	tld := makeTLD(t)
	d := makeDomain()
	pollID := uuid.New()

	recurring := domain.NewRecurring(d, "registrar-a", d.ExpirationTime,
		domain.RenewalPriceDefault, nil, uuid.New())
	d.AutorenewID = &recurring.ID
	d.AutorenewPollID = &pollID
	wireDomain(deps, d, tld)

	deps.billing.GetFunc = func(_ context.Context, id uuid.UUID) (*domain.BillingEvent, error) {
		if id == recurring.ID {
			return recurring, nil
		}
		return nil, domain.ErrNotFound
	}

	var closedPoll uuid.UUID
	var closeTime time.Time
	deps.poll.HandleRecurringClosedFunc = func(_ context.Context, id uuid.UUID, at time.Time) error {
		closedPoll = id
		closeTime = at
		return nil
	}

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
	})
	require.NoError(t, err)

	assert.Equal(t, testNow, deps.billing.closed[recurring.ID])
	assert.Equal(t, pollID, closedPoll)
	assert.Equal(t, testNow, closeTime)

	// The replacement recurrence carries the old pricing behavior forward.
	recurrings := deps.billing.createdOfType(domain.BillingRecurring)
	require.Len(t, recurrings, 1)
	assert.Equal(t, domain.RenewalPriceDefault, recurrings[0].RenewalPriceBehavior)
}

func TestService_Renew_CarriesSpecifiedPriceForward(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	locked := domain.NewMoney("7.50", "USD")

	recurring := domain.NewRecurring(d, "registrar-a", d.ExpirationTime,
		domain.RenewalPriceSpecified, &locked, uuid.New())
	d.AutorenewID = &recurring.ID
	wireDomain(deps, d, makeTLD(t))
	deps.billing.GetFunc = func(_ context.Context, id uuid.UUID) (*domain.BillingEvent, error) {
		return recurring, nil
	}

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
	})
	require.NoError(t, err)

	recurrings := deps.billing.createdOfType(domain.BillingRecurring)
	require.Len(t, recurrings, 1)
	assert.Equal(t, domain.RenewalPriceSpecified, recurrings[0].RenewalPriceBehavior)
	require.NotNil(t, recurrings[0].RenewalPrice)
	assert.True(t, recurrings[0].RenewalPrice.Equal(locked))

	// The quote saw the governing recurrence.
	require.Len(t, deps.fees.quotes, 1)
	assert.Same(t, recurring, deps.fees.quotes[0].Recurring)
}

func TestService_Renew_TokenRedeemed(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	tok := &domain.AllocationToken{
		Token:                "promo-1",
		Type:                 domain.TokenSingleUse,
		RenewalPriceBehavior: domain.RenewalPriceNonPremium,
	}
	deps.tokens.ValidateFunc = func(_ context.Context, raw, name, tld, registrarID string, _ time.Time) (*domain.AllocationToken, error) {
		assert.Equal(t, "promo-1", raw)
		assert.Equal(t, d.Name, name)
		return tok, nil
	}

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
		AllocationToken:   "promo-1",
	})
	require.NoError(t, err)

	require.Len(t, deps.tokens.redeemed, 1)
	assert.Same(t, tok, deps.tokens.redeemed[0])

	// A token pricing policy wins over the superseded recurrence.
	recurrings := deps.billing.createdOfType(domain.BillingRecurring)
	require.Len(t, recurrings, 1)
	assert.Equal(t, domain.RenewalPriceNonPremium, recurrings[0].RenewalPriceBehavior)
}

func TestService_Renew_PackageTokenAttaches(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	deps.tokens.ValidateFunc = func(_ context.Context, raw, _, _, _ string, _ time.Time) (*domain.AllocationToken, error) {
		return &domain.AllocationToken{Token: raw, Type: domain.TokenPackage}, nil
	}

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
		AllocationToken:   "pkg-1",
	})
	require.NoError(t, err)

	require.Len(t, deps.domains.updated, 1)
	require.NotNil(t, deps.domains.updated[0].PackageTokenID)
	assert.Equal(t, "pkg-1", *deps.domains.updated[0].PackageTokenID)
}

func TestService_Renew_RemovePackageToken(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	attached := "pkg-1"
	d.PackageTokenID = &attached
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
		AllocationToken:   domain.RemovePackageToken,
	})
	require.NoError(t, err)

	require.Len(t, deps.domains.updated, 1)
	assert.Nil(t, deps.domains.updated[0].PackageTokenID)
	assert.Empty(t, deps.tokens.redeemed)
}

func TestService_Renew_PackageTokenRequiresExplicitChoice(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	attached := "pkg-token-1"
	d.PackageTokenID = &attached
	wireDomain(deps, d, makeTLD(t))

	// No token named: the registrar must keep the package token or opt out.
	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
	})
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.Empty(t, deps.domains.updated)
	assert.Empty(t, deps.billing.created)
}

func TestService_Renew_RemovePackageTokenWithoutOne(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t)
	d := makeDomain()
	wireDomain(deps, d, makeTLD(t))

	_, err := svc.Renew(registrarCtx("registrar-a"), RenewInput{
		DomainName:        d.Name,
		CurrentExpiration: d.ExpirationTime,
		Years:             1,
		AllocationToken:   domain.RemovePackageToken,
	})
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}
