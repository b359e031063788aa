package worldstate

// Position is the bot's location in block coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// InventoryItem is one stack in the bot's inventory snapshot.
type InventoryItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Sample is one snapshot of the external bot state. Every field is optional:
// a nil pointer (or nil slice) means "unknown", and consumers must treat
// unknown fields they depend on as a do-not-act signal. The sample never
// imputes values.
type Sample struct {
	Position       *Position       `json:"position,omitempty"`
	Health         *float64        `json:"health,omitempty"` // 0-20
	Food           *int            `json:"food,omitempty"`   // 0-20
	Inventory      []InventoryItem `json:"inventory,omitempty"`
	TimeOfDay      *int            `json:"time_of_day,omitempty"` // Minecraft tick 0-23999
	Biome          string          `json:"biome,omitempty"`
	NearbyHostiles *int            `json:"nearby_hostiles,omitempty"`
	NearbyPassives *int            `json:"nearby_passives,omitempty"`
}

// InventoryCounts flattens the inventory into name -> total count.
// Returns nil when the inventory is unknown so absence stays distinguishable
// from an empty inventory.
func (s *Sample) InventoryCounts() map[string]int {
	if s == nil || s.Inventory == nil {
		return nil
	}
	counts := make(map[string]int, len(s.Inventory))
	for _, item := range s.Inventory {
		counts[item.Name] += item.Count
	}
	return counts
}
