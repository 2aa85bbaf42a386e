package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrMalformed marks an inbound record that is missing a required field or
// carries a value outside its domain. Only the offending record is dropped.
var ErrMalformed = errors.New("malformed record")

type RiskLabel string

const (
	RiskLow      RiskLabel = "low"
	RiskMedium   RiskLabel = "medium"
	RiskHigh     RiskLabel = "high"
	RiskCritical RiskLabel = "critical"
)

var riskRank = map[RiskLabel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLabel accepts labels in any case ("CRITICAL", " Critical ").
func ParseRiskLabel(raw string) (RiskLabel, error) {
	label := RiskLabel(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := riskRank[label]; !ok {
		return "", fmt.Errorf("%w: unknown risk label %q", ErrMalformed, raw)
	}
	return label, nil
}

// Rank orders labels; unknown labels rank 0.
func (l RiskLabel) Rank() int {
	return riskRank[l]
}

func (l RiskLabel) AtLeast(other RiskLabel) bool {
	return l.Rank() > 0 && l.Rank() >= other.Rank()
}

// Category is a canonical product-category tag shared by the mapper and the
// forecast feed. Canonical form is trimmed lower case.
type Category string

const CategoryUncategorized Category = "uncategorized"

func NormalizeCategory(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

// Display returns the title-cased tag used in human facing output.
func (c Category) Display() string {
	s := string(c)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type DecisionStatus string

const (
	StatusOpen         DecisionStatus = "open"
	StatusNotified     DecisionStatus = "notified"
	StatusAcknowledged DecisionStatus = "acknowledged"
	StatusResolved     DecisionStatus = "resolved"
)

const DefaultHorizonDays = 14

type MaritimeEvent struct {
	ID           string    `json:"id"`
	VesselID     string    `json:"vessel_id"`
	Manifest     []string  `json:"manifest"`
	RiskLabel    RiskLabel `json:"risk_label"`
	RiskScore    float64   `json:"risk_score,omitempty"`
	DelayMinutes int       `json:"delay_minutes"`
	ObservedAt   time.Time `json:"observed_at"`
}

func (e MaritimeEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.VesselID) == "":
		return fmt.Errorf("%w: vessel_id is required", ErrMalformed)
	case e.ObservedAt.IsZero():
		return fmt.Errorf("%w: observed_at is required for vessel %s", ErrMalformed, e.VesselID)
	case e.DelayMinutes < 0:
		return fmt.Errorf("%w: delay_minutes must be >= 0 for vessel %s", ErrMalformed, e.VesselID)
	case e.RiskScore < 0 || e.RiskScore > 100:
		return fmt.Errorf("%w: risk_score out of range for vessel %s", ErrMalformed, e.VesselID)
	}
	if _, err := ParseRiskLabel(string(e.RiskLabel)); err != nil {
		return fmt.Errorf("vessel %s: %w", e.VesselID, err)
	}
	return nil
}

// Key identifies the event for log and partition purposes.
func (e MaritimeEvent) Key() string {
	if e.ID != "" {
		return e.VesselID + "|" + e.ID
	}
	return e.VesselID + "|" + e.ObservedAt.UTC().Format(time.RFC3339)
}

// PartitionKey keeps one vessel's events on one partition.
func (e MaritimeEvent) PartitionKey() string {
	return e.VesselID
}

type DisruptionWindow struct {
	Category    Category      `json:"category"`
	VesselID    string        `json:"vessel_id"`
	EventID     string        `json:"event_id,omitempty"`
	Start       time.Time     `json:"disruption_start"`
	End         time.Time     `json:"disruption_end"`
	ScaledDelay time.Duration `json:"scaled_delay"`
	Buffer      time.Duration `json:"buffer"`
}

// Intersects reports whether the window overlaps the closed interval [from, to].
func (w DisruptionWindow) Intersects(from, to time.Time) bool {
	return !w.End.Before(from) && !w.Start.After(to)
}

type StockoutForecast struct {
	Category      Category  `json:"category"`
	DepletionDate time.Time `json:"depletion_date"`
	IssuedAt      time.Time `json:"forecast_issued_at"`
	HorizonDays   int       `json:"horizon_days"`
	Confidence    float64   `json:"confidence,omitempty"`
}

func (f StockoutForecast) Validate() error {
	switch {
	case strings.TrimSpace(string(f.Category)) == "":
		return fmt.Errorf("%w: category is required", ErrMalformed)
	case f.DepletionDate.IsZero():
		return fmt.Errorf("%w: depletion_date is required for category %s", ErrMalformed, f.Category)
	case f.IssuedAt.IsZero():
		return fmt.Errorf("%w: forecast_issued_at is required for category %s", ErrMalformed, f.Category)
	case f.DepletionDate.Before(f.IssuedAt):
		return fmt.Errorf("%w: depletion_date precedes forecast_issued_at for category %s", ErrMalformed, f.Category)
	case f.HorizonDays < 0:
		return fmt.Errorf("%w: horizon_days must be >= 0 for category %s", ErrMalformed, f.Category)
	case f.Confidence < 0 || f.Confidence > 1:
		return fmt.Errorf("%w: confidence out of range for category %s", ErrMalformed, f.Category)
	}
	return nil
}

// Horizon returns the forecast horizon, defaulting to 14 days.
func (f StockoutForecast) Horizon() time.Duration {
	days := f.HorizonDays
	if days == 0 {
		days = DefaultHorizonDays
	}
	return time.Duration(days) * 24 * time.Hour
}

type AlertDecision struct {
	ID                string         `json:"id"`
	Category          Category       `json:"category"`
	VesselID          string         `json:"vessel_id"`
	EventID           string         `json:"event_id,omitempty"`
	DisruptionStart   time.Time      `json:"disruption_start"`
	DisruptionEnd     time.Time      `json:"disruption_end"`
	DepletionDate     time.Time      `json:"depletion_date"`
	ForecastIssuedAt  time.Time      `json:"forecast_issued_at"`
	LeadTimeGap       time.Duration  `json:"lead_time_gap"`
	Severity          Severity       `json:"severity"`
	RecommendedAction string         `json:"recommended_action"`
	Status            DecisionStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

var decisionNamespace = uuid.MustParse("6f1d3c52-5a0e-4c43-9a57-0f6f8b3e2d41")

// DecisionID derives a stable id so the same snapshot always yields the same
// decisions and storage inserts stay idempotent.
func DecisionID(vesselID string, category Category, eventID string, depletion time.Time) string {
	name := strings.Join([]string{vesselID, string(category), eventID, depletion.UTC().Format(time.RFC3339)}, "|")
	return uuid.NewSHA1(decisionNamespace, []byte(name)).String()
}

// DedupKey is the vessel/category pair the sent-alert ledger is keyed by.
func (d AlertDecision) DedupKey() string {
	return d.VesselID + "_" + string(d.Category)
}

func (d AlertDecision) PartitionKey() string {
	return d.DedupKey()
}

// LeadTimeGapDays rounds the gap up to whole days for reporting.
func (d AlertDecision) LeadTimeGapDays() int {
	day := 24 * time.Hour
	return int((d.LeadTimeGap + day - 1) / day)
}
