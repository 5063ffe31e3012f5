// Package pricing computes order subtotals and totals under coupon discounts.
// All functions are pure; amounts are decimals rounded to two places.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	// ErrDiscountNotApplicable is returned when a discount would push the order
	// below the minimum chargeable amount. Callers keep the undiscounted subtotal.
	ErrDiscountNotApplicable = errors.New("discount not applicable to this order amount")
	ErrInvalidDiscount       = errors.New("invalid discount")
)

// DefaultMinimumCharge is the smallest total the gateways accept, in the
// reference currency.
var DefaultMinimumCharge = decimal.RequireFromString("1.00")

var hundred = decimal.NewFromInt(100)

type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

func (d Discount) Validate() error {
	switch d.Type {
	case DiscountFixed:
		if d.Value.IsNegative() {
			return fmt.Errorf("%w: fixed value %s is negative", ErrInvalidDiscount, d.Value)
		}
	case DiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage %s outside [0,100]", ErrInvalidDiscount, d.Value)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, d.Type)
	}
	return nil
}

// Order is a client-side selection, never persisted before submission.
type Order struct {
	PackageID string    `json:"packageId"`
	AddOnIDs  []string  `json:"addOns,omitempty"`
	Discount  *Discount `json:"discount,omitempty"`
}

type Quote struct {
	Package       Package         `json:"package"`
	AddOns        []AddOn         `json:"addOns"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	Discount      *Discount       `json:"discount,omitempty"`
	CouponApplied bool            `json:"couponApplied"`
	// Rejection is set when a discount was supplied but not applied.
	Rejection string `json:"rejection,omitempty"`
}

type Engine struct {
	catalog *Catalog
	minimum decimal.Decimal
}

func NewEngine(catalog *Catalog, minimum decimal.Decimal) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if minimum.IsZero() {
		minimum = DefaultMinimumCharge
	}
	return &Engine{catalog: catalog, minimum: minimum}
}

func (e *Engine) Catalog() *Catalog { return e.catalog }

func (e *Engine) Minimum() decimal.Decimal { return e.minimum }

// Subtotal sums the package and each distinct add-on, rounding after summation.
func (e *Engine) Subtotal(pkg Package, addOnIDs []string) (decimal.Decimal, []AddOn, error) {
	total := pkg.Price
	seen := make(map[string]bool, len(addOnIDs))
	var addOns []AddOn
	for _, id := range addOnIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		a, err := e.catalog.AddOn(id)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("%w: %s", err, id)
		}
		addOns = append(addOns, a)
		total = total.Add(a.Price)
	}
	return total.Round(2), addOns, nil
}

// ComputeTotal prices a package with add-ons and an optional discount.
// Fixed discounts clamp at the minimum; a percentage discount that lands below
// the minimum is rejected with ErrDiscountNotApplicable.
func (e *Engine) ComputeTotal(pkg Package, addOnIDs []string, discount *Discount) (decimal.Decimal, error) {
	subtotal, _, err := e.Subtotal(pkg, addOnIDs)
	if err != nil {
		return decimal.Zero, err
	}
	if discount == nil {
		return subtotal, nil
	}
	return e.discounted(subtotal, *discount)
}

func (e *Engine) discounted(subtotal decimal.Decimal, d Discount) (decimal.Decimal, error) {
	if err := d.Validate(); err != nil {
		return decimal.Zero, err
	}
	switch d.Type {
	case DiscountFixed:
		return decimal.Max(e.minimum, subtotal.Sub(d.Value)).Round(2), nil
	default:
		// the floor applies before rounding: 0.998 is not chargeable
		raw := subtotal.Mul(decimal.NewFromInt(1).Sub(d.Value.Div(hundred)))
		if raw.LessThan(e.minimum) {
			return decimal.Zero, ErrDiscountNotApplicable
		}
		return raw.Round(2), nil
	}
}

// ApplyCoupon checks a coupon discount against a subtotal before it is applied.
// The unrounded discounted amount must reach the minimum, otherwise the coupon
// is rejected and the subtotal stands.
func (e *Engine) ApplyCoupon(subtotal decimal.Decimal, d Discount) (decimal.Decimal, error) {
	if err := d.Validate(); err != nil {
		return subtotal, err
	}
	var raw decimal.Decimal
	switch d.Type {
	case DiscountFixed:
		raw = decimal.Max(decimal.Zero, subtotal.Sub(d.Value))
	default:
		raw = subtotal.Mul(decimal.NewFromInt(1).Sub(d.Value.Div(hundred)))
	}
	if raw.LessThan(e.minimum) {
		return subtotal, ErrDiscountNotApplicable
	}
	return e.discounted(subtotal, d)
}

// Quote resolves an order against the catalog. A rejected discount is reported
// on the quote rather than as an error.
func (e *Engine) Quote(order Order) (Quote, error) {
	pkg, err := e.catalog.Package(order.PackageID)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s", err, order.PackageID)
	}
	subtotal, addOns, err := e.Subtotal(pkg, order.AddOnIDs)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Package: pkg, AddOns: addOns, Subtotal: subtotal, Total: subtotal}
	if order.Discount == nil {
		return q, nil
	}
	total, err := e.ApplyCoupon(subtotal, *order.Discount)
	switch {
	case errors.Is(err, ErrDiscountNotApplicable):
		q.Rejection = err.Error()
		return q, nil
	case err != nil:
		return Quote{}, err
	}
	q.Total = total
	q.Discount = order.Discount
	q.CouponApplied = true
	return q, nil
}

// MeetsMinimum reports whether amount can be charged at all.
func (e *Engine) MeetsMinimum(amount decimal.Decimal) bool {
	return !amount.LessThan(e.minimum)
}
