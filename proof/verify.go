package proof

import (
	"sort"

	"github.com/voxelmind/reflexcore/worldstate"
)

// Reason is the closed verification outcome vocabulary. Values are stable
// wire identifiers.
type Reason string

const (
	ReasonAfterStateUnavailable             Reason = "AFTER_STATE_UNAVAILABLE"
	ReasonReceiptConfirmsConsumption        Reason = "RECEIPT_CONFIRMS_CONSUMPTION"
	ReasonFoodIncreasedAndConsumed          Reason = "FOOD_INCREASED_AND_CONSUMED"
	ReasonFoodIncreasedNoConsumptionFound   Reason = "FOOD_INCREASED_BUT_NO_CONSUMPTION_EVIDENCE"
	ReasonFoodIncreasedInventoryUnavailable Reason = "FOOD_INCREASED_BUT_INVENTORY_UNAVAILABLE"
	ReasonNoFoodIncreaseOrConsumption       Reason = "NO_FOOD_INCREASE_OR_CONSUMPTION_EVIDENCE"
)

// Verified reports whether the reason counts as a successful verification.
func (r Reason) Verified() bool {
	switch r {
	case ReasonAfterStateUnavailable, ReasonReceiptConfirmsConsumption, ReasonFoodIncreasedAndConsumed:
		return true
	}
	return false
}

// verify computes the Verification record and its Reason from the before
// snapshot held in the accumulator, the optional after sample, and the
// optional executor receipt.
func verify(foodBefore int, inventoryBefore map[string]int, receipt *Receipt, after *worldstate.Sample) (Verification, Reason) {
	v := Verification{
		FoodBefore:    foodBefore,
		ItemsConsumed: []string{},
	}

	// A sample without a food reading cannot support any consumption verdict,
	// so it counts as no after-state at all. food_after and delta are nil
	// exactly in this case.
	if after == nil || after.Food == nil {
		return v, ReasonAfterStateUnavailable
	}

	foodAfter := *after.Food
	delta := foodAfter - foodBefore
	v.FoodAfter = &foodAfter
	v.Delta = &delta

	afterCounts := after.InventoryCounts()

	// Items whose counts decreased between snapshots, sorted.
	if inventoryBefore != nil && afterCounts != nil {
		for name, before := range inventoryBefore {
			if afterCounts[name] < before {
				v.ItemsConsumed = append(v.ItemsConsumed, name)
			}
		}
		sort.Strings(v.ItemsConsumed)
	}

	if receipt != nil && (receipt.ItemsConsumed > 0 || receipt.FoodConsumed != "") {
		return v, ReasonReceiptConfirmsConsumption
	}

	if v.Delta != nil && *v.Delta > 0 {
		for _, name := range v.ItemsConsumed {
			if worldstate.IsFood(name) {
				return v, ReasonFoodIncreasedAndConsumed
			}
		}
		if foodTrackable(inventoryBefore, afterCounts) {
			return v, ReasonFoodIncreasedNoConsumptionFound
		}
		return v, ReasonFoodIncreasedInventoryUnavailable
	}

	return v, ReasonNoFoodIncreaseOrConsumption
}

// foodTrackable reports whether either inventory snapshot carried a known
// food item, i.e. consumption could have been observed at all.
func foodTrackable(before, after map[string]int) bool {
	for name := range before {
		if worldstate.IsFood(name) {
			return true
		}
	}
	for name := range after {
		if worldstate.IsFood(name) {
			return true
		}
	}
	return false
}
