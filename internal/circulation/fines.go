package circulation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FinePolicy prices an overdue return: PerDay for every calendar day past
// the due date, capped at Cap when Cap is positive.
type FinePolicy struct {
	PerDay decimal.Decimal
	Cap    decimal.Decimal
}

// NewFinePolicy parses decimal strings such as "0.50". An empty cap means no cap.
func NewFinePolicy(perDay, maxFine string) (FinePolicy, error) {
	rate, err := decimal.NewFromString(perDay)
	if err != nil {
		return FinePolicy{}, fmt.Errorf("invalid fine per day %q: %w", perDay, err)
	}
	if rate.IsNegative() {
		return FinePolicy{}, fmt.Errorf("fine per day must not be negative, got %s", perDay)
	}

	limit := decimal.Zero
	if maxFine != "" {
		limit, err = decimal.NewFromString(maxFine)
		if err != nil {
			return FinePolicy{}, fmt.Errorf("invalid fine cap %q: %w", maxFine, err)
		}
	}

	return FinePolicy{PerDay: rate, Cap: limit}, nil
}

// Amount returns the fine for the given number of overdue days, rounded to cents.
func (p FinePolicy) Amount(daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	amount := p.PerDay.Mul(decimal.NewFromInt(int64(daysOverdue)))
	if p.Cap.IsPositive() && amount.GreaterThan(p.Cap) {
		amount = p.Cap
	}
	return amount.Round(2)
}

// DaysOverdue counts whole calendar days between the due date and the return
// date as seen in loc. Returning any time on the due date is not overdue.
func DaysOverdue(due, returned time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	days := int(calendarDay(returned, loc).Sub(calendarDay(due, loc)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
