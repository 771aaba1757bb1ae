// Package schedule turns a sale's economic terms into its set of payment
// obligations. Generation is pure: all validation happens before any entry
// is returned, so callers can persist the batch atomically.
package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidecrm/tidecrm/internal/errs"
	"github.com/tidecrm/tidecrm/internal/models"
)

// Schedule modes.
const (
	ModeAutomatic = "automatic"
	ModeCustom    = "custom"
)

// Entry is one generated obligation before persistence.
type Entry struct {
	SequenceNumber int // 1-based
	Amount         decimal.Decimal
	DueDate        time.Time
	Notes          string
}

// CustomEntry is a caller-supplied schedule row for custom mode.
// Index is 0-based and must cover every installment exactly once.
type CustomEntry struct {
	Index   int
	DueDate time.Time
	Notes   string
}

// InstallmentParams describes a fixed-count installment plan.
type InstallmentParams struct {
	UnitPrice decimal.Decimal
	CashIn    decimal.Decimal
	Count     int
	Mode      string // automatic or custom
	Frequency string // automatic mode: weekly, monthly, quarterly
	StartDate time.Time
	Entries   []CustomEntry // custom mode
}

// RecurringParams describes a recurring charge plan. CashIn is the
// per-occurrence amount. TotalPayments nil means unbounded.
type RecurringParams struct {
	CashIn        decimal.Decimal
	Mode          string
	Frequency     string
	StartDate     time.Time
	TotalPayments *int
	Entries       []CustomEntry // custom mode; bounds the plan to len(Entries)
}

// moneyScale is the cent precision all generated amounts are rounded to.
const moneyScale = 2

// Legal frequency sets per plan kind. Installment plans never stretch to
// yearly; recurring charges may.
var (
	installmentFrequencies = []string{models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyQuarterly}
	recurringFrequencies   = []string{models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly}
)

func checkFrequency(frequency string, allowed []string) error {
	for _, f := range allowed {
		if frequency == f {
			return nil
		}
	}
	return errs.Invalid("frequency", "unknown_frequency")
}

// AddPeriod returns t advanced by one frequency period. Monthly and
// quarterly moves are calendar moves, not fixed day counts.
func AddPeriod(t time.Time, frequency string) time.Time {
	switch frequency {
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case models.FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case models.FrequencyYearly:
		return t.AddDate(1, 0, 0)
	default: // monthly
		return t.AddDate(0, 1, 0)
	}
}

// dueDateAt returns start + i periods, computed from the start date so a
// short month in the middle of the schedule does not shift later dates.
func dueDateAt(start time.Time, frequency string, i int) time.Time {
	switch frequency {
	case models.FrequencyWeekly:
		return start.AddDate(0, 0, 7*i)
	case models.FrequencyQuarterly:
		return start.AddDate(0, 3*i, 0)
	case models.FrequencyYearly:
		return start.AddDate(i, 0, 0)
	default:
		return start.AddDate(0, i, 0)
	}
}

// splitPrincipal evenly splits principal into count cent-exact parts, the
// last part absorbing the rounding remainder so the sum never drifts.
func splitPrincipal(principal decimal.Decimal, count int) []decimal.Decimal {
	per := principal.Div(decimal.NewFromInt(int64(count))).Round(moneyScale)
	amounts := make([]decimal.Decimal, count)
	running := decimal.Zero
	for i := 0; i < count-1; i++ {
		amounts[i] = per
		running = running.Add(per)
	}
	amounts[count-1] = principal.Sub(running)
	return amounts
}

// BuildInstallments produces the full obligation set for an installment
// plan. The amounts always sum to unit_price - cash_in exactly.
func BuildInstallments(p InstallmentParams) ([]Entry, error) {
	if p.Count < 1 {
		return nil, &errs.InvalidScheduleError{Count: p.Count, Reason: "installment count must be at least 1"}
	}
	if p.CashIn.GreaterThan(p.UnitPrice) {
		return nil, &errs.InvalidAmountError{Field: "cash_in", Amount: p.CashIn, Max: p.UnitPrice}
	}
	principal := p.UnitPrice.Sub(p.CashIn)
	amounts := splitPrincipal(principal, p.Count)

	entries := make([]Entry, p.Count)
	switch p.Mode {
	case ModeCustom:
		if len(p.Entries) != p.Count {
			return nil, errs.Invalid("entries", "count_mismatch")
		}
		seen := make(map[int]bool, p.Count)
		var missing []int
		byIndex := make(map[int]CustomEntry, p.Count)
		for _, ce := range p.Entries {
			if ce.Index < 0 || ce.Index >= p.Count || seen[ce.Index] {
				return nil, errs.Invalid("entries", "bad_index")
			}
			seen[ce.Index] = true
			byIndex[ce.Index] = ce
		}
		for i := 0; i < p.Count; i++ {
			if byIndex[i].DueDate.IsZero() {
				missing = append(missing, i)
			}
		}
		if len(missing) > 0 {
			return nil, &errs.IncompleteScheduleError{MissingIndexes: missing}
		}
		for i := 0; i < p.Count; i++ {
			ce := byIndex[i]
			entries[i] = Entry{SequenceNumber: i + 1, Amount: amounts[i], DueDate: ce.DueDate, Notes: ce.Notes}
		}
	default: // automatic
		if err := checkFrequency(p.Frequency, installmentFrequencies); err != nil {
			return nil, err
		}
		for i := 0; i < p.Count; i++ {
			entries[i] = Entry{SequenceNumber: i + 1, Amount: amounts[i], DueDate: dueDateAt(p.StartDate, p.Frequency, i)}
		}
	}
	return entries, nil
}

// BuildRecurring produces the plan row and, for bounded plans, the
// materialized occurrences. Unbounded automatic plans store only the
// next-payment pointer.
func BuildRecurring(saleID uint, p RecurringParams) (*models.RecurringPlan, []Entry, error) {
	if p.CashIn.Sign() <= 0 {
		return nil, nil, &errs.InvalidAmountError{Field: "cash_in", Amount: p.CashIn, Max: decimal.Zero}
	}

	plan := &models.RecurringPlan{
		SaleID:    saleID,
		Frequency: p.Frequency,
		Status:    models.RecurringActive,
	}

	switch p.Mode {
	case ModeCustom:
		// Custom plans take their dates from the supplied entries, so the
		// frequency only has to be legal when one is given.
		if p.Frequency != "" {
			if err := checkFrequency(p.Frequency, recurringFrequencies); err != nil {
				return nil, nil, err
			}
		}
		if len(p.Entries) < 1 {
			return nil, nil, &errs.InvalidScheduleError{Count: len(p.Entries), Reason: "custom recurring needs at least one occurrence"}
		}
		var missing []int
		for i, ce := range p.Entries {
			if ce.DueDate.IsZero() {
				missing = append(missing, i)
			}
		}
		if len(missing) > 0 {
			return nil, nil, &errs.IncompleteScheduleError{MissingIndexes: missing}
		}
		total := len(p.Entries)
		plan.TotalPayments = &total
		plan.NextPaymentDate = p.Entries[0].DueDate
		entries := make([]Entry, total)
		for i, ce := range p.Entries {
			entries[i] = Entry{SequenceNumber: i + 1, Amount: p.CashIn, DueDate: ce.DueDate, Notes: ce.Notes}
		}
		return plan, entries, nil
	default: // automatic
		if err := checkFrequency(p.Frequency, recurringFrequencies); err != nil {
			return nil, nil, err
		}
		plan.NextPaymentDate = p.StartDate
		if p.TotalPayments == nil {
			return plan, nil, nil
		}
		if *p.TotalPayments < 1 {
			return nil, nil, &errs.InvalidScheduleError{Count: *p.TotalPayments, Reason: "bounded recurring count must be at least 1"}
		}
		plan.TotalPayments = p.TotalPayments
		entries := make([]Entry, *p.TotalPayments)
		for i := 0; i < *p.TotalPayments; i++ {
			entries[i] = Entry{SequenceNumber: i + 1, Amount: p.CashIn, DueDate: dueDateAt(p.StartDate, p.Frequency, i)}
		}
		return plan, entries, nil
	}
}

// Obligations converts generated entries into persistable rows for a sale.
func Obligations(saleID uint, entries []Entry) []models.PaymentObligation {
	rows := make([]models.PaymentObligation, len(entries))
	for i, e := range entries {
		rows[i] = models.PaymentObligation{
			SaleID:         saleID,
			SequenceNumber: e.SequenceNumber,
			Amount:         e.Amount,
			DueDate:        e.DueDate,
			PaidAmount:     decimal.Zero,
			Status:         models.ObligationPending,
			Notes:          e.Notes,
		}
	}
	return rows
}
