package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPackage = errors.New("unknown package")
	ErrUnknownAddOn   = errors.New("unknown add-on")
)

// Package is an immutable catalog entry.
type Package struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Period      string          `json:"period"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Popular     bool            `json:"popular,omitempty"`
}

// AddOn is an optional feature priced on top of a package.
type AddOn struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// Catalog is a read-only set of packages and add-ons.
type Catalog struct {
	packages []Package
	addOns   []AddOn
}

func NewCatalog(packages []Package, addOns []AddOn) *Catalog {
	return &Catalog{packages: packages, addOns: addOns}
}

// DefaultCatalog returns the storefront's subscription plans.
func DefaultCatalog() *Catalog {
	features := []string{"HD & 4K streams", "Catch-up TV", "Multi-device", "24/7 support"}
	return NewCatalog(
		[]Package{
			{
				ID:          "1year",
				Name:        "1-Year Plan",
				Price:       decimal.RequireFromString("29.99"),
				Period:      "year",
				Description: "Best value for serious streamers",
				Features:    features,
			},
			{
				ID:          "2year",
				Name:        "2-Year Plan",
				Price:       decimal.RequireFromString("49.99"),
				Period:      "2 years",
				Description: "Extended entertainment package",
				Features:    features,
				Popular:     true,
			},
		},
		[]AddOn{
			{ID: "adult", Label: "+18 Package", Price: decimal.RequireFromString("4.99")},
		},
	)
}

func (c *Catalog) Packages() []Package {
	out := make([]Package, len(c.packages))
	copy(out, c.packages)
	return out
}

func (c *Catalog) AddOns() []AddOn {
	out := make([]AddOn, len(c.addOns))
	copy(out, c.addOns)
	return out
}

func (c *Catalog) Package(id string) (Package, error) {
	for _, p := range c.packages {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, ErrUnknownPackage
}

func (c *Catalog) AddOn(id string) (AddOn, error) {
	for _, a := range c.addOns {
		if a.ID == id {
			return a, nil
		}
	}
	return AddOn{}, ErrUnknownAddOn
}
