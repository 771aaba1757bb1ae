package validation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if val.Sign() <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.Sign() < 0 {
		v[field] = "must_not_be_negative"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_value"
}

var periodRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Period validates a YYYY-MM monthly period string.
func Period(field, value string, v Violations) {
	if !periodRegex.MatchString(value) {
		v[field] = "invalid_period"
	}
}
