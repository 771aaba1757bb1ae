package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidecrm/tidecrm/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestRemaining_OneTime(t *testing.T) {
	sale := &models.Sale{
		PaymentType: models.PaymentTypeOneTime,
		UnitPrice:   d("1000.00"),
		CashIn:      d("400.00"),
	}
	if got := Remaining(sale, nil); !got.Equal(d("600.00")) {
		t.Errorf("expected 600.00, got %s", got)
	}
}

func TestRemaining_InstallmentsSkipsCancelled(t *testing.T) {
	sale := &models.Sale{PaymentType: models.PaymentTypeInstallments}
	obligations := []models.PaymentObligation{
		{Amount: d("250.00"), PaidAmount: d("250.00"), Status: models.ObligationPaid},
		{Amount: d("250.00"), PaidAmount: d("100.00"), Status: models.ObligationPending},
		{Amount: d("250.00"), PaidAmount: decimal.Zero, Status: models.ObligationOverdue},
		{Amount: d("250.00"), PaidAmount: decimal.Zero, Status: models.ObligationCancelled},
	}
	if got := Remaining(sale, obligations); !got.Equal(d("400.00")) {
		t.Errorf("expected 400.00, got %s", got)
	}
}

func TestDaysUntilDue(t *testing.T) {
	today := date(2024, time.March, 15)
	cases := []struct {
		due  time.Time
		want int
	}{
		{date(2024, time.March, 15), 0},
		{date(2024, time.March, 17), 2},
		{date(2024, time.March, 14), -1},
		{date(2024, time.April, 1), 17},
	}
	for _, c := range cases {
		if got := DaysUntilDue(c.due, today); got != c.want {
			t.Errorf("due %s: expected %d, got %d", c.due.Format("2006-01-02"), c.want, got)
		}
	}
}

func TestDaysUntilDue_IgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2024, time.March, 16, 23, 59, 0, 0, time.UTC)
	today := time.Date(2024, time.March, 15, 0, 1, 0, 0, time.UTC)
	if got := DaysUntilDue(due, today); got != 1 {
		t.Errorf("expected 1 whole calendar day, got %d", got)
	}
}

func TestOverdue(t *testing.T) {
	today := date(2024, time.March, 15)
	o := &models.PaymentObligation{DueDate: date(2024, time.March, 14), Status: models.ObligationPending}
	if !Overdue(o, today) {
		t.Error("pending past-due obligation should be overdue")
	}
	o.DueDate = date(2024, time.March, 15)
	if Overdue(o, today) {
		t.Error("due today is not overdue")
	}
	o.DueDate = date(2024, time.March, 1)
	o.Status = models.ObligationPaid
	if Overdue(o, today) {
		t.Error("settled obligations are never overdue")
	}
}

func TestIsDueSoon(t *testing.T) {
	today := date(2024, time.March, 15)
	cases := []struct {
		due    time.Time
		status string
		want   bool
	}{
		{date(2024, time.March, 15), models.ObligationPending, true},
		{date(2024, time.March, 17), models.ObligationPending, true},
		{date(2024, time.March, 18), models.ObligationPending, false},
		{date(2024, time.March, 14), models.ObligationPending, false},
		{date(2024, time.March, 16), models.ObligationPaid, false},
	}
	for _, c := range cases {
		o := &models.PaymentObligation{DueDate: c.due, Status: c.status}
		if got := IsDueSoon(o, today); got != c.want {
			t.Errorf("due %s status %s: expected %v, got %v",
				c.due.Format("2006-01-02"), c.status, c.want, got)
		}
	}
}

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		target, actual string
		want           int
	}{
		{"10000.00", "5000.00", 50},
		{"10000.00", "0", 0},
		{"10000.00", "12500.00", 125}, // over-achievement is not clamped
		{"3000.00", "1000.00", 33},
		{"3000.00", "2000.00", 67},
		{"0", "5000.00", 0},
		{"-100.00", "5000.00", 0},
	}
	for _, c := range cases {
		if got := ProgressPercentage(d(c.target), d(c.actual)); got != c.want {
			t.Errorf("target=%s actual=%s: expected %d, got %d", c.target, c.actual, c.want, got)
		}
	}
}
