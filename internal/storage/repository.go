package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) UpsertForecasts(ctx context.Context, forecasts []contracts.StockoutForecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range forecasts {
		horizon := f.HorizonDays
		if horizon == 0 {
			horizon = contracts.DefaultHorizonDays
		}
		batch.Queue(`
            INSERT INTO stockout_forecasts (category, issued_at, depletion_date, horizon_days, confidence)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (category, issued_at) DO UPDATE
            SET depletion_date = EXCLUDED.depletion_date,
                horizon_days   = EXCLUDED.horizon_days,
                confidence     = EXCLUDED.confidence,
                updated_at     = NOW()
        `, string(contracts.NormalizeCategory(string(f.Category))), f.IssuedAt, f.DepletionDate, horizon, f.Confidence)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert forecasts: %w", err)
	}
	return nil
}

// ListForecasts returns the latest issued forecast per category.
func (r *Repository) ListForecasts(ctx context.Context) ([]contracts.StockoutForecast, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT DISTINCT ON (category) category, issued_at, depletion_date, horizon_days, confidence
        FROM stockout_forecasts
        ORDER BY category, issued_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	forecasts := make([]contracts.StockoutForecast, 0, 32)
	for rows.Next() {
		var f contracts.StockoutForecast
		var category string
		if err := rows.Scan(&category, &f.IssuedAt, &f.DepletionDate, &f.HorizonDays, &f.Confidence); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		f.Category = contracts.Category(category)
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// ReplaceMappings swaps the whole supply chain map atomically.
func (r *Repository) ReplaceMappings(ctx context.Context, mappings []contracts.MappingRow) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM category_mappings`); err != nil {
			return err
		}
		for _, m := range mappings {
			if !m.Valid() {
				continue
			}
			if _, err := tx.Exec(ctx, `
                INSERT INTO category_mappings (vessel_name, category)
                VALUES ($1, $2)
                ON CONFLICT DO NOTHING
            `, m.VesselName, string(m.Category)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace mappings: %w", err)
	}
	return nil
}

func (r *Repository) ListMappings(ctx context.Context) ([]contracts.MappingRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT vessel_name, category FROM category_mappings ORDER BY vessel_name, category`)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []contracts.MappingRow
	for rows.Next() {
		var m contracts.MappingRow
		var category string
		if err := rows.Scan(&m.VesselName, &category); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		m.Category = contracts.Category(category)
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// InsertDecisions stores decisions and reports how many were new. Decision ids
// are deterministic, so replaying a batch inserts nothing.
func (r *Repository) InsertDecisions(ctx context.Context, decisions []contracts.AlertDecision) (int, error) {
	inserted := 0
	for _, d := range decisions {
		status := d.Status
		if status == "" {
			status = contracts.StatusOpen
		}
		cmd, err := r.pool.Exec(ctx, `
            INSERT INTO alert_decisions
                (id, category, vessel_id, event_id, disruption_start, disruption_end, depletion_date,
                 forecast_issued_at, lead_time_gap_sec, severity, recommended_action, status)
            VALUES
                ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
            ON CONFLICT (id) DO NOTHING
        `, d.ID, string(d.Category), d.VesselID, d.EventID, d.DisruptionStart, d.DisruptionEnd, d.DepletionDate,
			d.ForecastIssuedAt, int64(d.LeadTimeGap/time.Second), string(d.Severity), d.RecommendedAction, string(status))
		if err != nil {
			return inserted, fmt.Errorf("insert decision %s: %w", d.ID, err)
		}
		inserted += int(cmd.RowsAffected())
	}
	return inserted, nil
}

func (r *Repository) ListDecisions(ctx context.Context, status, category string, limit int) ([]contracts.AlertDecision, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
        SELECT id::text, category, vessel_id, event_id, disruption_start, disruption_end, depletion_date,
               forecast_issued_at, lead_time_gap_sec, severity, recommended_action, status, created_at, updated_at
        FROM alert_decisions
        WHERE ($1 = '' OR status = $1)
          AND ($2 = '' OR category = $2)
        ORDER BY created_at DESC, id
        LIMIT $3
    `, status, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]contracts.AlertDecision, 0, limit)
	for rows.Next() {
		var (
			d                 contracts.AlertDecision
			cat, severity, st string
			gapSeconds        int64
		)
		if err := rows.Scan(
			&d.ID,
			&cat,
			&d.VesselID,
			&d.EventID,
			&d.DisruptionStart,
			&d.DisruptionEnd,
			&d.DepletionDate,
			&d.ForecastIssuedAt,
			&gapSeconds,
			&severity,
			&d.RecommendedAction,
			&st,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Category = contracts.Category(cat)
		d.Severity = contracts.Severity(severity)
		d.Status = contracts.DecisionStatus(st)
		d.LeadTimeGap = time.Duration(gapSeconds) * time.Second
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

// UpdateDecisionStatus returns pgx.ErrNoRows when the id is unknown.
func (r *Repository) UpdateDecisionStatus(ctx context.Context, id string, status contracts.DecisionStatus) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE alert_decisions
        SET status = $2,
            updated_at = NOW(),
            acknowledged_at = CASE WHEN $2 = 'acknowledged' THEN NOW() ELSE acknowledged_at END,
            resolved_at = CASE WHEN $2 = 'resolved' THEN NOW() ELSE resolved_at END
        WHERE id::text = $1
    `, id, string(status))
	if err != nil {
		return fmt.Errorf("update decision status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecordDelivery stamps the outcome of a notification attempt. A nil
// deliveryErr moves open decisions to notified; a failure only records the
// error text and leaves the status alone.
func (r *Repository) RecordDelivery(ctx context.Context, ids []string, deliveryErr error) error {
	if len(ids) == 0 {
		return nil
	}
	var errText string
	if deliveryErr != nil {
		errText = deliveryErr.Error()
	}

	_, err := r.pool.Exec(ctx, `
        UPDATE alert_decisions
        SET status = CASE WHEN $2 = '' AND status = 'open' THEN 'notified' ELSE status END,
            notified_at = CASE WHEN $2 = '' THEN NOW() ELSE notified_at END,
            delivery_error = $2,
            updated_at = NOW()
        WHERE id::text = ANY($1)
    `, ids, errText)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

type Summary struct {
	OpenDecisions     int            `json:"open_decisions"`
	NotifiedDecisions int            `json:"notified_decisions"`
	Acknowledged      int            `json:"acknowledged_decisions"`
	Resolved24h       int            `json:"resolved_last_24h"`
	BySeverity        map[string]int `json:"by_severity"`
	ForecastedCats    int            `json:"forecasted_categories"`
	MappedVessels     int            `json:"mapped_vessels"`
}

func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	summary := Summary{BySeverity: map[string]int{}}
	err := r.pool.QueryRow(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE status = 'open'),
            COUNT(*) FILTER (WHERE status = 'notified'),
            COUNT(*) FILTER (WHERE status = 'acknowledged'),
            COUNT(*) FILTER (WHERE status = 'resolved' AND resolved_at >= NOW() - INTERVAL '24 hours'),
            (SELECT COUNT(DISTINCT category) FROM stockout_forecasts),
            (SELECT COUNT(DISTINCT lower(vessel_name)) FROM category_mappings)
        FROM alert_decisions
    `).Scan(&summary.OpenDecisions, &summary.NotifiedDecisions, &summary.Acknowledged, &summary.Resolved24h,
		&summary.ForecastedCats, &summary.MappedVessels)
	if err != nil {
		return Summary{}, fmt.Errorf("decision summary: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
        SELECT severity, COUNT(*)
        FROM alert_decisions
        WHERE status IN ('open', 'notified', 'acknowledged')
        GROUP BY severity
    `)
	if err != nil {
		return Summary{}, fmt.Errorf("severity summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return Summary{}, fmt.Errorf("scan severity summary: %w", err)
		}
		summary.BySeverity[severity] = n
	}

	return summary, rows.Err()
}
