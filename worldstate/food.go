package worldstate

// foodItems is the closed set of inventory item names treated as edible.
var foodItems = map[string]struct{}{
	"apple":                  {},
	"baked_potato":           {},
	"beetroot":               {},
	"beetroot_soup":          {},
	"bread":                  {},
	"carrot":                 {},
	"cooked_beef":            {},
	"cooked_chicken":         {},
	"cooked_cod":             {},
	"cooked_mutton":          {},
	"cooked_porkchop":        {},
	"cooked_rabbit":          {},
	"cooked_salmon":          {},
	"cookie":                 {},
	"dried_kelp":             {},
	"enchanted_golden_apple": {},
	"glow_berries":           {},
	"golden_apple":           {},
	"golden_carrot":          {},
	"honey_bottle":           {},
	"melon_slice":            {},
	"mushroom_stew":          {},
	"pumpkin_pie":            {},
	"rabbit_stew":            {},
	"suspicious_stew":        {},
	"sweet_berries":          {},
}

// IsFood reports whether an item name is recognised as food.
func IsFood(name string) bool {
	_, ok := foodItems[name]
	return ok
}
