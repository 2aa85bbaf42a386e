// Package sheets reads the bridge's input tabs from a Google spreadsheet and
// writes the supply-chain map back to it.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

// ErrMissingData is returned when a required tab has no data rows.
var ErrMissingData = errors.New("critical data missing from spreadsheet")

type Tabs struct {
	RiskAlerts  string
	Predictions string
	Mapping     string
}

func DefaultTabs() Tabs {
	return Tabs{RiskAlerts: "risk_alerts", Predictions: "stockout_predictions", Mapping: "supply_chain_map"}
}

// Stats counts rows dropped while translating a snapshot.
type Stats struct {
	MalformedEvents    int
	MalformedForecasts int
	MalformedMappings  int
}

type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	tabs          Tabs
	now           func() time.Time
}

// New opens a Sheets client. credentialsJSON is a service account key; extra
// options are appended after it.
func New(ctx context.Context, credentialsJSON, spreadsheetID string, tabs Tabs, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	all := make([]option.ClientOption, 0, len(opts)+2)
	if credentialsJSON != "" {
		all = append(all,
			option.WithCredentialsJSON([]byte(credentialsJSON)),
			option.WithScopes(gsheets.SpreadsheetsScope))
	}
	all = append(all, opts...)

	svc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: tabs, now: time.Now}, nil
}

// Fetch reads the three tabs concurrently and translates them into a batch.
func (c *Client) Fetch(ctx context.Context) (contracts.Batch, Stats, error) {
	var alerts, predictions, mapping [][]any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		alerts, err = c.read(gctx, c.tabs.RiskAlerts)
		return err
	})
	g.Go(func() (err error) {
		predictions, err = c.read(gctx, c.tabs.Predictions)
		return err
	})
	g.Go(func() (err error) {
		mapping, err = c.read(gctx, c.tabs.Mapping)
		return err
	})
	if err := g.Wait(); err != nil {
		return contracts.Batch{}, Stats{}, err
	}

	alertRecs, predRecs, mapRecs := Records(alerts), Records(predictions), Records(mapping)
	if len(alertRecs) == 0 || len(predRecs) == 0 || len(mapRecs) == 0 {
		return contracts.Batch{}, Stats{}, ErrMissingData
	}

	fetchedAt := c.now().UTC()
	var (
		batch contracts.Batch
		stats Stats
	)
	batch.Events, stats.MalformedEvents = ParseEvents(alertRecs, fetchedAt)
	batch.Forecasts, stats.MalformedForecasts = ParseForecasts(predRecs, fetchedAt)
	batch.Mappings, stats.MalformedMappings = ParseMappings(mapRecs)
	return batch, stats, nil
}

func (c *Client) read(ctx context.Context, tab string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %s: %w", tab, err)
	}
	return resp.Values, nil
}

// WriteMapping replaces the mapping tab with rows, creating the tab if needed.
func (c *Client) WriteMapping(ctx context.Context, rows []contracts.MappingRow) error {
	if err := c.ensureTab(ctx, c.tabs.Mapping); err != nil {
		return err
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.tabs.Mapping, &gsheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear tab %s: %w", c.tabs.Mapping, err)
	}
	body := &gsheets.ValueRange{Values: MappingValues(rows)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.tabs.Mapping+"!A1", body).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write tab %s: %w", c.tabs.Mapping, err)
	}
	return nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title:          title,
					GridProperties: &gsheets.GridProperties{RowCount: 100, ColumnCount: 5},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", title, err)
	}
	return nil
}
