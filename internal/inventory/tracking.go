package inventory

import (
	"math"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// contentEpsilon absorbs float accumulation noise when comparing quantities.
const contentEpsilon = 1e-9

// Unit vocabulary per category: chemicals measure mass or volume, consumables
// count pieces. Content and measured-quantity units must come from here.
var categoryUnits = map[Category][]string{
	CategoryChemical:   {"mg", "g", "kg", "ul", "ml", "l"},
	CategoryConsumable: {"pcs", "pair", "sheet", "strip"},
}

func unitAllowed(cat Category, unit string) bool {
	for _, u := range categoryUnits[cat] {
		if u == unit {
			return true
		}
	}
	return false
}

func (s SimpleMeasure) validate(cat Category) error {
	if s.QuantityValue < 0 {
		return shared.NewValidationError("quantity_value", "Quantity must not be negative")
	}
	if !unitAllowed(cat, s.QuantityUnit) {
		return shared.NewValidationError("quantity_unit", "Unit is not allowed for this category")
	}
	return nil
}

func (u UnitOnly) validate(cat Category) error {
	if u.TotalUnits < 0 {
		return shared.NewValidationError("total_units", "Unit count must not be negative")
	}
	if u.UnitType == "" {
		return shared.NewValidationError("unit_type", "Unit type is required")
	}
	return nil
}

func (p PackWithContent) validate(cat Category) error {
	if p.TotalUnits < 1 {
		return shared.NewValidationError("total_units", "At least one unit is required")
	}
	if p.ContentPerUnit <= 0 {
		return shared.NewValidationError("content_per_unit", "Content per unit must be greater than 0")
	}
	if !unitAllowed(cat, p.ContentUnit) {
		return shared.NewValidationError("content_unit", "Unit is not allowed for this category")
	}
	return nil
}

// validateStock checks a variant against the item category.
func validateStock(cat Category, stock Stock) error {
	if cat != CategoryChemical && cat != CategoryConsumable {
		return shared.NewValidationError("category", "Category must be chemical or consumable")
	}
	if stock == nil {
		return shared.NewValidationError("tracking_type", "Tracking type is required")
	}
	return stock.validate(cat)
}

// authoritativeQuantity returns the quantity the minimum-stock threshold and
// adjust/restock operations apply to, with its display unit. For packs the
// nominal unit count is authoritative; live content comes from the ledger.
func authoritativeQuantity(stock Stock) (float64, string) {
	switch s := stock.(type) {
	case SimpleMeasure:
		return s.QuantityValue, s.QuantityUnit
	case UnitOnly:
		return float64(s.TotalUnits), s.UnitType
	case PackWithContent:
		return float64(s.TotalUnits), s.ContentUnit
	default:
		return 0, ""
	}
}

// wholeUnits converts an amount that must be a non-negative whole unit count.
// Amounts at or above MaxInt64 (and NaN) are rejected before conversion; an
// out-of-range float-to-int64 conversion does not saturate.
func wholeUnits(amount float64, field string) (int64, error) {
	if amount < 0 {
		return 0, shared.NewValidationError(field, "Amount must not be negative")
	}
	if math.IsNaN(amount) || amount >= math.MaxInt64 {
		return 0, shared.NewValidationError(field, "Amount is too large to be a unit count")
	}
	n := math.Round(amount)
	if math.Abs(amount-n) > contentEpsilon {
		return 0, shared.NewValidationError(field, "Amount must be a whole number of units")
	}
	return int64(n), nil
}

// snapshotOf captures the quantity state of an item plus its containers.
// Only fields of the active tracking type are populated; the rest stay nil.
func snapshotOf(item Item, containers []Container) QuantitySnapshot {
	snap := QuantitySnapshot{Status: item.Status}
	if item.Stock == nil {
		return snap
	}
	snap.TrackingType = item.Stock.Type()
	switch s := item.Stock.(type) {
	case SimpleMeasure:
		snap.QuantityValue = &s.QuantityValue
		snap.QuantityUnit = &s.QuantityUnit
	case UnitOnly:
		snap.TotalUnits = &s.TotalUnits
		snap.UnitType = &s.UnitType
	case PackWithContent:
		snap.TotalUnits = &s.TotalUnits
		snap.ContentPerUnit = &s.ContentPerUnit
		snap.ContentUnit = &s.ContentUnit
		tally := tallyContainers(containers)
		snap.SealedCount = &tally.Sealed
		snap.OpenedCount = &tally.Opened
		snap.EmptyCount = &tally.Empty
		snap.RemainingContent = &tally.RemainingContent
	}
	return snap
}

// belowMinimum reports whether available stock sits under the threshold.
// available is the ledger-derived remaining content for packs, the
// authoritative quantity otherwise.
func belowMinimum(item Item, tally ContainerTally) bool {
	if item.MinimumStock <= 0 {
		return false
	}
	if _, ok := item.Stock.(PackWithContent); ok {
		return tally.RemainingContent < item.MinimumStock
	}
	qty, _ := authoritativeQuantity(item.Stock)
	return qty < item.MinimumStock
}
