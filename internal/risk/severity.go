package risk

import (
	"time"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

// SeverityForGap grades how long shelves stay empty: the lead-time gap is the
// time between depletion and the end of the disruption window.
func SeverityForGap(gap time.Duration) contracts.Severity {
	switch {
	case gap >= 7*day:
		return contracts.SeverityCritical
	case gap >= 3*day:
		return contracts.SeverityHigh
	default:
		return contracts.SeverityMedium
	}
}

func Recommendation(severity contracts.Severity) string {
	switch severity {
	case contracts.SeverityCritical:
		return "Immediate intervention: expedite replacement stock by air or alternate port and ration remaining inventory."
	case contracts.SeverityHigh:
		return "High risk: raise safety stock from secondary suppliers and notify store operations within 24 hours."
	default:
		return "Moderate risk: monitor daily sell-through and prepare a transfer between stores."
	}
}
