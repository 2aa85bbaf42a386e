package mapping

import "github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"

// DefaultVesselMap is the seed supply_chain_map: which vessel carries which category.
func DefaultVesselMap() []contracts.MappingRow {
	return []contracts.MappingRow{
		{VesselName: "Megastar", Category: "Electronics"},
		{VesselName: "MEGAStar", Category: "Electronics"},
		{VesselName: "Megastar", Category: "Toys"},
		{VesselName: "Star", Category: "Electronics"},
		{VesselName: "Star", Category: "Toys"},
		{VesselName: "Finlandia", Category: "Furniture"},
		{VesselName: "FINLANDIA", Category: "Furniture"},
		{VesselName: "Finlandia", Category: "Clothing"},
		{VesselName: "Europa", Category: "Groceries"},
	}
}
