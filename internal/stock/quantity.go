package stock

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

// Quantities are stored as numeric(12,2).
const QuantityScale = 2

var maxQuantity = decimal.New(1, 10)

// quantityProblem describes why q cannot be stored as a movement quantity,
// or returns "" when it can.
func quantityProblem(q decimal.Decimal) string {
	switch {
	case !q.IsPositive():
		return "must be greater than zero"
	case !q.Equal(q.Round(QuantityScale)):
		return "must have at most 2 decimal places"
	case q.GreaterThanOrEqual(maxQuantity):
		return "must be less than " + maxQuantity.String()
	}
	return ""
}

// ValidateQuantity returns INVALID_QUANTITY, prefixed with label, unless q
// is positive and fits the stored precision.
func ValidateQuantity(label string, q decimal.Decimal) error {
	if problem := quantityProblem(q); problem != "" {
		return pkgerrors.Newf(pkgerrors.CodeInvalidQuantity, "%s %s", label, problem)
	}
	return nil
}
