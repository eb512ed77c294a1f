package amc

import (
	"fmt"
	"math"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// frequencyDivisors maps each cadence to its period in months. The weekly
// values are a coarse weeks-per-month approximation kept for compatibility
// with historical contracts; do not replace with exact week counting.
var frequencyDivisors = map[Frequency]float64{
	FreqWeekly:     0.23,
	FreqBiWeekly:   0.46,
	FreqMonthly:    1,
	FreqQuarterly:  3,
	FreqHalfYearly: 6,
	FreqYearly:     12,
}

// DurationMonths derives the contract length as ceil(days / 30).
func DurationMonths(start, end time.Time) int {
	days := end.Sub(start).Hours() / 24
	return int(math.Ceil(days / 30))
}

// DeriveServiceCount returns the number of visits owed over the contract
// window: ceil(durationMonths / frequency period).
func DeriveServiceCount(start, end time.Time, freq Frequency) (int, error) {
	divisor, ok := frequencyDivisors[freq]
	if !ok {
		return 0, fmt.Errorf("%w: unknown service frequency %q", shared.ErrValidation, freq)
	}
	months := DurationMonths(start, end)
	return int(math.Ceil(float64(months) / divisor)), nil
}

// Renew builds the successor contract and marks the old one Renewed. The
// successor starts exactly where the old contract ends, so coverage is
// contiguous. The caller persists the successor and then links renewedTo.
func Renew(old *Contract, newEndDate time.Time, actorID int64) (*Contract, error) {
	if old.Status != StatusActive {
		return nil, fmt.Errorf("%w: contract %d cannot be renewed from %s", shared.ErrInvalidTransition, old.ID, old.Status)
	}
	if !newEndDate.After(old.EndDate) {
		return nil, fmt.Errorf("%w: renewal end date must be after %s", shared.ErrInvalidDateRange, old.EndDate.Format(time.DateOnly))
	}

	count, err := DeriveServiceCount(old.EndDate, newEndDate, old.ServiceFrequency)
	if err != nil {
		return nil, err
	}

	oldID := old.ID
	successor := &Contract{
		ClientID:         old.ClientID,
		StartDate:        old.EndDate,
		EndDate:          newEndDate,
		DurationMonths:   DurationMonths(old.EndDate, newEndDate),
		ServiceFrequency: old.ServiceFrequency,
		NumberOfServices: count,
		ContractValue:    old.ContractValue,
		PaymentTerms:     old.PaymentTerms,
		AssignedTo:       old.AssignedTo,
		Status:           StatusActive,
		AutoRenewal:      old.AutoRenewal,
		RenewedFrom:      &oldID,
		CreatedBy:        actorID,
	}

	old.Status = StatusRenewed
	return successor, nil
}
