package contracts

import "strings"

// MappingRow links a raw vessel name to a category, as kept in the
// supply_chain_map table.
type MappingRow struct {
	VesselName string   `json:"ship_name_raw"`
	Category   Category `json:"assigned_category"`
}

func (m MappingRow) Valid() bool {
	return strings.TrimSpace(m.VesselName) != "" && strings.TrimSpace(string(m.Category)) != ""
}

// Batch is one snapshot handed to a correlation pass.
type Batch struct {
	Events    []MaritimeEvent    `json:"events"`
	Forecasts []StockoutForecast `json:"forecasts"`
	Mappings  []MappingRow       `json:"mappings,omitempty"`
}
