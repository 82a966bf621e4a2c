package pricing

import (
	"math"

	"propview/internal/hierarchy"
)

// ============================================================
// Price resolution
// ============================================================

const (
	// TotalPriceThreshold separates a project-level per-area rate from an
	// absolute ticket price.
	TotalPriceThreshold = 50000.0
	// TokenRate is the share of the final price collected to confirm a hold.
	TokenRate = 0.005
)

type Source string

const (
	SourceNone         Source = "none"
	SourceUnitRate     Source = "unit_rate"
	SourceProjectRate  Source = "project_rate"
	SourceProjectTotal Source = "project_total"
	SourceDiscount     Source = "discount"
	SourceUnitPrice    Source = "unit_price"
	SourceRawFallback  Source = "project_fallback"
)

type Quote struct {
	Area        float64 `json:"area"`
	Rate        float64 `json:"rate"`
	FinalPrice  float64 `json:"final_price"`
	TokenAmount float64 `json:"token_amount"`
	Source      Source  `json:"source"`
}

// Available reports whether the quote carries a real price.
func (q Quote) Available() bool {
	return q.FinalPrice > 0
}

// Resolve computes the effective price and token for a unit. It is the only
// price computation in the system: the displayed token and the amount sent to
// the payment order both come from here.
func Resolve(unit hierarchy.Unit, project *hierarchy.Project) Quote {
	q := Quote{Source: SourceNone}
	q.Area = resolveArea(unit)

	fallback := projectFallback(project)

	switch {
	case positive(unit.PricePerSqft):
		q.Rate = unit.PricePerSqft
		q.FinalPrice = q.Rate * q.Area
		q.Source = SourceUnitRate
	case fallback > TotalPriceThreshold:
		q.FinalPrice = fallback
		if q.Area > 0 {
			q.Rate = fallback / q.Area
		}
		q.Source = SourceProjectTotal
	case fallback > 0:
		q.Rate = fallback
		q.FinalPrice = q.Rate * q.Area
		q.Source = SourceProjectRate
	}

	if discount, ok := resolveDiscount(unit, project); ok {
		q.Rate = discount
		q.FinalPrice = discount * q.Area
		q.Source = SourceDiscount
	}

	if q.FinalPrice == 0 {
		switch {
		case positive(unit.Price):
			q.FinalPrice = unit.Price
			q.Source = SourceUnitPrice
		case fallback > 0:
			q.FinalPrice = fallback
			q.Source = SourceRawFallback
		}
	}

	q.TokenAmount = q.FinalPrice * TokenRate
	return q
}

func resolveArea(unit hierarchy.Unit) float64 {
	for _, v := range []float64{unit.Area, unit.SuperBuiltUpArea, unit.CarpetArea} {
		if positive(v) {
			return v
		}
	}
	return 0
}

// projectFallback returns the first positive project-level price field.
func projectFallback(project *hierarchy.Project) float64 {
	if project == nil {
		return 0
	}

	candidates := []float64{
		project.BaseRate,
		project.PricePerSqft,
		project.OriginalPrice,
		project.GroupPrice,
		project.StartingPrice,
		project.Price,
	}
	for _, v := range candidates {
		if positive(v) {
			return v
		}
	}
	return 0
}

func resolveDiscount(unit hierarchy.Unit, project *hierarchy.Project) (float64, bool) {
	if unit.DiscountPricePerSqft != nil && positive(*unit.DiscountPricePerSqft) {
		return *unit.DiscountPricePerSqft, true
	}
	if project != nil && project.DiscountPricePerSqft != nil && positive(*project.DiscountPricePerSqft) {
		return *project.DiscountPricePerSqft, true
	}
	return 0, false
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
