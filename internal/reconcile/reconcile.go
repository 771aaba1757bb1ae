// Package reconcile derives balance and progress figures from a sale, its
// obligations and the ledger. Everything here is pure and idempotent;
// nothing is persisted.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidecrm/tidecrm/internal/models"
)

// DueSoonDays is the urgency window for the upcoming-payments surfaces.
const DueSoonDays = 2

// Remaining returns what is still owed on a sale. One-time sales owe
// unit_price - cash_in; scheduled sales owe the sum of outstanding
// amounts over non-cancelled obligations.
func Remaining(sale *models.Sale, obligations []models.PaymentObligation) decimal.Decimal {
	if sale.PaymentType == models.PaymentTypeOneTime {
		return sale.UnitPrice.Sub(sale.CashIn)
	}
	total := decimal.Zero
	for _, o := range obligations {
		if o.Status == models.ObligationCancelled {
			continue
		}
		total = total.Add(o.Amount.Sub(o.PaidAmount))
	}
	return total
}

// DaysUntilDue returns whole days from today until date; negative means
// overdue by that many days. Both arguments are treated as calendar dates.
func DaysUntilDue(date, today time.Time) int {
	d := truncateToDay(date)
	t := truncateToDay(today)
	return int(d.Sub(t).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Overdue reports whether a non-settled obligation's due date has passed.
func Overdue(o *models.PaymentObligation, today time.Time) bool {
	if o.Settled() {
		return false
	}
	return DaysUntilDue(o.DueDate, today) < 0
}

// IsDueSoon reports whether an obligation falls inside the urgency window.
// Used for surfacing only, never persisted.
func IsDueSoon(o *models.PaymentObligation, today time.Time) bool {
	if o.Settled() {
		return false
	}
	d := DaysUntilDue(o.DueDate, today)
	return d >= 0 && d <= DueSoonDays
}

// ProgressPercentage returns round(actual/target*100), or 0 for a
// non-positive target. Values over 100 are not clamped here; bar-width
// clamping belongs to the UI.
func ProgressPercentage(target, actual decimal.Decimal) int {
	if target.Sign() <= 0 {
		return 0
	}
	pct := actual.Div(target).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}
