package inventory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

func TestValidateStockUnits(t *testing.T) {
	require.NoError(t, validateStock(CategoryChemical, SimpleMeasure{QuantityValue: 500, QuantityUnit: "ml"}))
	require.NoError(t, validateStock(CategoryConsumable, UnitOnly{TotalUnits: 10, UnitType: "pair"}))
	require.NoError(t, validateStock(CategoryChemical, PackWithContent{TotalUnits: 2, ContentPerUnit: 50, ContentUnit: "g"}))

	var validationErr *shared.ValidationError

	err := validateStock(CategoryConsumable, SimpleMeasure{QuantityValue: 500, QuantityUnit: "ml"})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "quantity_unit", validationErr.Field)

	err = validateStock(CategoryChemical, PackWithContent{TotalUnits: 0, ContentPerUnit: 50, ContentUnit: "g"})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "total_units", validationErr.Field)

	err = validateStock(CategoryChemical, PackWithContent{TotalUnits: 2, ContentPerUnit: 0, ContentUnit: "g"})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "Content per unit must be greater than 0", validationErr.Message)

	err = validateStock(Category("reagent"), SimpleMeasure{QuantityValue: 1, QuantityUnit: "g"})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "category", validationErr.Field)

	err = validateStock(CategoryChemical, nil)
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "tracking_type", validationErr.Field)
}

func TestWholeUnits(t *testing.T) {
	n, err := wholeUnits(3, "amount")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	n, err = wholeUnits(0, "amount")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	_, err = wholeUnits(2.5, "amount")
	require.Error(t, err)

	_, err = wholeUnits(-1, "amount")
	require.Error(t, err)

	// Values past int64 must be rejected, not wrapped by the conversion.
	for _, amount := range []float64{1e300, math.MaxInt64, math.Inf(1), math.NaN()} {
		_, err = wholeUnits(amount, "amount")
		var validationErr *shared.ValidationError
		require.ErrorAs(t, err, &validationErr, "amount %v", amount)
		require.Equal(t, "amount", validationErr.Field)
	}
}

func TestSnapshotOnlyActiveVariantFields(t *testing.T) {
	item := Item{Status: StatusActive, Stock: SimpleMeasure{QuantityValue: 120, QuantityUnit: "ml"}}
	snap := snapshotOf(item, nil)
	require.Equal(t, TrackingSimpleMeasure, snap.TrackingType)
	require.NotNil(t, snap.QuantityValue)
	require.InDelta(t, 120, *snap.QuantityValue, 0.0001)
	require.Nil(t, snap.TotalUnits)
	require.Nil(t, snap.ContentPerUnit)
	require.Nil(t, snap.SealedCount)

	pack := Item{Status: StatusActive, Stock: PackWithContent{TotalUnits: 2, ContentPerUnit: 50, ContentUnit: "g"}}
	containers := buildContainers(1, pack.Stock.(PackWithContent), false, nil, pack.CreatedAt)
	snap = snapshotOf(pack, containers)
	require.Nil(t, snap.QuantityValue)
	require.NotNil(t, snap.SealedCount)
	require.Equal(t, 2, *snap.SealedCount)
	require.InDelta(t, 100, *snap.RemainingContent, 0.0001)
}

func TestBelowMinimum(t *testing.T) {
	simple := Item{MinimumStock: 100, Stock: SimpleMeasure{QuantityValue: 80, QuantityUnit: "ml"}}
	require.True(t, belowMinimum(simple, ContainerTally{}))

	simple.Stock = SimpleMeasure{QuantityValue: 150, QuantityUnit: "ml"}
	require.False(t, belowMinimum(simple, ContainerTally{}))

	// Packs compare the live ledger content, not the nominal unit count.
	pack := Item{MinimumStock: 500, Stock: PackWithContent{TotalUnits: 10, ContentPerUnit: 100, ContentUnit: "ml"}}
	require.True(t, belowMinimum(pack, ContainerTally{RemainingContent: 300}))
	require.False(t, belowMinimum(pack, ContainerTally{RemainingContent: 600}))

	noThreshold := Item{MinimumStock: 0, Stock: SimpleMeasure{QuantityValue: 0, QuantityUnit: "ml"}}
	require.False(t, belowMinimum(noThreshold, ContainerTally{}))
}
