package amc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDurationMonths(t *testing.T) {
	start := date(2026, 1, 1)
	require.Equal(t, 12, DurationMonths(start, start.AddDate(0, 0, 360)))
	require.Equal(t, 13, DurationMonths(start, start.AddDate(0, 0, 365)))
	require.Equal(t, 1, DurationMonths(start, start.AddDate(0, 0, 30)))
	require.Equal(t, 2, DurationMonths(start, start.AddDate(0, 0, 31)))
	require.Equal(t, 1, DurationMonths(start, start.AddDate(0, 0, 1)))
}

func TestDeriveServiceCount(t *testing.T) {
	start := date(2026, 1, 1)
	end := start.AddDate(0, 0, 360) // 12 derived months

	cases := []struct {
		freq Frequency
		want int
	}{
		{FreqMonthly, 12},
		{FreqWeekly, 53},   // ceil(12 / 0.23)
		{FreqBiWeekly, 27}, // ceil(12 / 0.46)
		{FreqQuarterly, 4},
		{FreqHalfYearly, 2},
		{FreqYearly, 1},
	}
	for _, tc := range cases {
		got, err := DeriveServiceCount(start, end, tc.freq)
		require.NoError(t, err, "%s", tc.freq)
		require.Equal(t, tc.want, got, "%s", tc.freq)
	}
}

func TestDeriveServiceCountUnknownFrequency(t *testing.T) {
	_, err := DeriveServiceCount(date(2026, 1, 1), date(2026, 12, 27), "Fortnightly")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func activeContract() *Contract {
	return &Contract{
		ID:               10,
		ClientID:         3,
		StartDate:        date(2026, 1, 1),
		EndDate:          date(2026, 12, 27),
		DurationMonths:   12,
		ServiceFrequency: FreqMonthly,
		NumberOfServices: 12,
		ContractValue:    50000,
		Status:           StatusActive,
		AutoRenewal:      true,
	}
}

func TestRenewContiguous(t *testing.T) {
	old := activeContract()
	newEnd := old.EndDate.AddDate(0, 0, 360)

	successor, err := Renew(old, newEnd, 9)
	require.NoError(t, err)

	require.Equal(t, StatusRenewed, old.Status)
	require.Equal(t, old.EndDate, successor.StartDate, "contracts must be contiguous")
	require.Equal(t, newEnd, successor.EndDate)
	require.Equal(t, StatusActive, successor.Status)
	require.Equal(t, old.ContractValue, successor.ContractValue)
	require.Equal(t, old.ServiceFrequency, successor.ServiceFrequency)
	require.Equal(t, 12, successor.NumberOfServices)
	require.NotNil(t, successor.RenewedFrom)
	require.Equal(t, old.ID, *successor.RenewedFrom)
	require.Equal(t, int64(9), successor.CreatedBy)
	require.Zero(t, successor.ServicesCompleted)
	require.False(t, successor.RenewalNotificationSent)
}

func TestRenewRejectsEarlierEndDate(t *testing.T) {
	old := activeContract()
	_, err := Renew(old, old.EndDate, 9)
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
	require.Equal(t, StatusActive, old.Status, "failed renewal must not mutate")

	_, err = Renew(old, old.EndDate.AddDate(0, 0, -30), 9)
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}

func TestRenewRequiresActive(t *testing.T) {
	for _, s := range []Status{StatusExpired, StatusRenewed, StatusCancelled, StatusOnHold} {
		old := activeContract()
		old.Status = s
		_, err := Renew(old, old.EndDate.AddDate(1, 0, 0), 9)
		require.ErrorIs(t, err, shared.ErrInvalidTransition, "from %s", s)
	}
}

func TestRefreshStatus(t *testing.T) {
	c := activeContract()
	require.False(t, c.RefreshStatus(c.EndDate.AddDate(0, 0, -1)))
	require.Equal(t, StatusActive, c.Status)

	require.True(t, c.RefreshStatus(c.EndDate.AddDate(0, 0, 1)))
	require.Equal(t, StatusExpired, c.Status)

	// Terminal states never flip.
	require.False(t, c.RefreshStatus(c.EndDate.AddDate(1, 0, 0)))
	c.Status = StatusCancelled
	require.False(t, c.RefreshStatus(c.EndDate.AddDate(1, 0, 0)))
	require.Equal(t, StatusCancelled, c.Status)
}

func TestContractTransitions(t *testing.T) {
	c := activeContract()
	require.NoError(t, c.Hold())
	require.Equal(t, StatusOnHold, c.Status)
	require.ErrorIs(t, c.Hold(), shared.ErrInvalidTransition)

	require.NoError(t, c.Resume())
	require.Equal(t, StatusActive, c.Status)
	require.ErrorIs(t, c.Resume(), shared.ErrInvalidTransition)

	require.NoError(t, c.Cancel())
	require.Equal(t, StatusCancelled, c.Status)
	require.ErrorIs(t, c.Cancel(), shared.ErrInvalidTransition)
}

func TestServiceRecordTransitions(t *testing.T) {
	sr := &ServiceRecord{Status: ServiceScheduled}
	require.NoError(t, sr.Transition(ServiceRescheduled))
	require.NoError(t, sr.Transition(ServiceCompleted))
	require.ErrorIs(t, sr.Transition(ServiceMissed), shared.ErrInvalidTransition,
		"completed visits are terminal")

	sr = &ServiceRecord{Status: ServiceCancelled}
	require.ErrorIs(t, sr.Transition(ServiceScheduled), shared.ErrInvalidTransition)
}
