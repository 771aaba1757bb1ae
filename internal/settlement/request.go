package settlement

import "github.com/shopspring/decimal"

// Kind selects the settlement pathway. Adding a kind requires extending
// the switch in Processor.Apply, which the compiler flags via the
// exhaustive default branch returning an error.
type Kind int

const (
	// KindRemaining applies money against a one_time sale's remaining balance.
	KindRemaining Kind = iota + 1
	// KindInstallment applies money to one installment obligation.
	KindInstallment
	// KindRecurring settles one recurring occurrence.
	KindRecurring
)

func (k Kind) String() string {
	switch k {
	case KindRemaining:
		return "remaining"
	case KindInstallment:
		return "installment"
	case KindRecurring:
		return "recurring"
	default:
		return "unknown"
	}
}

// Request is a tagged-union settlement request. Exactly one target id is
// meaningful for a given Kind.
type Request struct {
	Kind            Kind
	SaleID          uint // KindRemaining
	ObligationID    uint // KindInstallment
	RecurringPlanID uint // KindRecurring
	Amount          decimal.Decimal
	Source          string
	Notes           string
}
