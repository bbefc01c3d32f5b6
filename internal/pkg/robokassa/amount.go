package robokassa

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	outSumPattern   = regexp.MustCompile(`^[0-9]+([.][0-9]{1,2})?$`)
	itemSumPattern  = regexp.MustCompile(`^[0-9]{1,8}([.][0-9]{1,2})?$`)
	amountPrecision = int32(2)
)

// Amount is a money value rendered with exactly two decimals, both in signatures and JSON.
type Amount struct {
	value decimal.Decimal
}

// ParseOutSum parses a positive payment total with at most two fractional digits.
func ParseOutSum(raw string) (Amount, error) {
	return parseAmount(raw, outSumPattern, "OutSum")
}

// ParseItemAmount parses a receipt/invoice item money value: up to 8 integer digits.
func ParseItemAmount(raw string) (Amount, error) {
	return parseAmount(raw, itemSumPattern, "item amount")
}

func parseAmount(raw string, pattern *regexp.Regexp, field string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{}, invalidArgument("the %q parameter is not defined", field)
	}
	if !pattern.MatchString(raw) {
		return Amount{}, invalidArgument("the %q parameter must be a positive decimal number", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, invalidArgument("the %q parameter: %v", field, err)
	}
	if !d.IsPositive() {
		return Amount{}, invalidArgument("the %q parameter must be greater than zero", field)
	}
	return Amount{value: d}, nil
}

// ParseCallbackAmount is lenient: the gateway may echo "100.000000" or "100,50".
func ParseCallbackAmount(raw string) (Amount, error) {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: invalid amount %q: %v", ErrInvalidArgument, raw, err)
	}
	return Amount{value: d}, nil
}

// AmountFromDecimal wraps an existing decimal value.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{value: d}
}

func (a Amount) Decimal() decimal.Decimal { return a.value }

func (a Amount) IsZero() bool { return a.value.IsZero() }

// String is the two-decimal fixed form used in OutSum and signatures.
func (a Amount) String() string {
	return a.value.StringFixed(amountPrecision)
}

// Mul multiplies by an item quantity.
func (a Amount) Mul(quantity int) Amount {
	return Amount{value: a.value.Mul(decimal.NewFromInt(int64(quantity)))}
}

// Equal compares numerically, so "100.10" equals "100.100000".
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	a.value = d
	return nil
}
