package sheets

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

// maxDelayMinutes bounds parsed delays so the int conversion stays defined.
const maxDelayMinutes = math.MaxInt32

// Record is one data row keyed by its header cell, lower-cased.
type Record map[string]string

// Records turns a header row plus data rows into keyed records. Blank rows
// are dropped; short rows leave the missing columns empty.
func Records(values [][]any) []Record {
	if len(values) < 2 {
		return nil
	}
	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.ToLower(strings.TrimSpace(cellString(cell)))
	}

	out := make([]Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(Record, len(header))
		blank := true
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(cellString(row[i]))
			if v != "" {
				blank = false
			}
			rec[name] = v
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}

// First returns the first non-empty value among the given columns.
func (r Record) First(columns ...string) string {
	for _, c := range columns {
		if v := r[c]; v != "" {
			return v
		}
	}
	return ""
}

// ParseEvents reads risk_alerts rows. Rows without a usable timestamp are
// stamped with fetchedAt, since the tab is a current snapshot.
func ParseEvents(records []Record, fetchedAt time.Time) ([]contracts.MaritimeEvent, int) {
	events := make([]contracts.MaritimeEvent, 0, len(records))
	malformed := 0
	for i, rec := range records {
		e, err := parseEvent(rec, fetchedAt)
		if err != nil {
			malformed++
			continue
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("row-%d", i+2)
		}
		events = append(events, e)
	}
	return events, malformed
}

func parseEvent(rec Record, fetchedAt time.Time) (contracts.MaritimeEvent, error) {
	e := contracts.MaritimeEvent{
		ID:       rec.First("event_id", "id"),
		VesselID: rec.First("vessel_id", "ship_name"),
		Manifest: splitList(rec.First("manifest", "cargo")),
	}

	var err error
	if raw := rec.First("risk_score"); raw != "" {
		if e.RiskScore, err = strconv.ParseFloat(raw, 64); err != nil {
			return e, fmt.Errorf("%w: risk_score %q", contracts.ErrMalformed, raw)
		}
	}
	switch raw := rec.First("risk_level", "risk_label"); {
	case raw != "":
		if e.RiskLabel, err = contracts.ParseRiskLabel(raw); err != nil {
			return e, err
		}
	case rec.First("risk_score") != "":
		e.RiskLabel = contracts.RiskLow
	default:
		return e, fmt.Errorf("%w: risk_level or risk_score is required", contracts.ErrMalformed)
	}
	if raw := rec.First("delay_minutes", "delay_min"); raw != "" {
		minutes, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(minutes) || math.Abs(minutes) > maxDelayMinutes {
			return e, fmt.Errorf("%w: delay_minutes %q", contracts.ErrMalformed, raw)
		}
		e.DelayMinutes = int(minutes)
	}

	e.ObservedAt = fetchedAt
	if raw := rec.First("observed_at", "timestamp"); raw != "" {
		if e.ObservedAt, err = parseTime(raw); err != nil {
			return e, err
		}
	}
	return e, e.Validate()
}

// ParseForecasts reads stockout_predictions rows. A row with an explicit
// depletion_date is taken as is; otherwise a stockout_14d_pred flag of at
// least 1 means depletion at the end of the horizon. Rows predicting no
// stockout are dropped without being counted as malformed.
func ParseForecasts(records []Record, fetchedAt time.Time) ([]contracts.StockoutForecast, int) {
	forecasts := make([]contracts.StockoutForecast, 0, len(records))
	malformed := 0
	for _, rec := range records {
		f, ok, err := parseForecast(rec, fetchedAt)
		if err != nil {
			malformed++
			continue
		}
		if ok {
			forecasts = append(forecasts, f)
		}
	}
	return forecasts, malformed
}

func parseForecast(rec Record, fetchedAt time.Time) (contracts.StockoutForecast, bool, error) {
	f := contracts.StockoutForecast{
		Category: contracts.NormalizeCategory(rec.First("category")),
		IssuedAt: fetchedAt,
	}

	var err error
	if raw := rec.First("issued_at", "forecast_issued_at"); raw != "" {
		if f.IssuedAt, err = parseTime(raw); err != nil {
			return f, false, err
		}
	}
	if raw := rec.First("horizon_days"); raw != "" {
		if f.HorizonDays, err = strconv.Atoi(raw); err != nil {
			return f, false, fmt.Errorf("%w: horizon_days %q", contracts.ErrMalformed, raw)
		}
	}
	if raw := rec.First("confidence"); raw != "" {
		if f.Confidence, err = strconv.ParseFloat(raw, 64); err != nil {
			return f, false, fmt.Errorf("%w: confidence %q", contracts.ErrMalformed, raw)
		}
	}

	if raw := rec.First("depletion_date"); raw != "" {
		if f.DepletionDate, err = parseTime(raw); err != nil {
			return f, false, err
		}
		return f, true, f.Validate()
	}

	raw := rec.First("stockout_14d_pred", "stockout_pred")
	if raw == "" {
		return f, false, fmt.Errorf("%w: depletion_date or stockout_14d_pred is required", contracts.ErrMalformed)
	}
	pred, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return f, false, fmt.Errorf("%w: stockout_14d_pred %q", contracts.ErrMalformed, raw)
	}
	if pred < 1 {
		return f, false, nil
	}
	f.DepletionDate = f.IssuedAt.Add(f.Horizon())
	return f, true, f.Validate()
}

// ParseMappings reads supply_chain_map rows (ship_name_raw, assigned_category).
func ParseMappings(records []Record) ([]contracts.MappingRow, int) {
	rows := make([]contracts.MappingRow, 0, len(records))
	malformed := 0
	for _, rec := range records {
		row := contracts.MappingRow{
			VesselName: rec.First("ship_name_raw", "vessel_id", "ship_name"),
			Category:   contracts.NormalizeCategory(rec.First("assigned_category", "category")),
		}
		if !row.Valid() {
			malformed++
			continue
		}
		rows = append(rows, row)
	}
	return rows, malformed
}

// MappingValues renders rows in the supply_chain_map layout, header first.
func MappingValues(rows []contracts.MappingRow) [][]any {
	values := make([][]any, 0, len(rows)+1)
	values = append(values, []any{"ship_name_raw", "assigned_category"})
	for _, r := range rows {
		values = append(values, []any{r.VesselName, r.Category.Display()})
	}
	return values
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised time %q", contracts.ErrMalformed, raw)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(f); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
