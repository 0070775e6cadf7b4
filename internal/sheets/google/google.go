// Package google stores expense records in a Google spreadsheet. Row 1 of the
// sheet is a header; every following row is one record in the column order
// createdAt, date, category, paymentMethod, spender, amount, description.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

// DefaultSheetName is the tab the household spreadsheet keeps its rows in.
const DefaultSheetName = "data"

// headerRow is the 1-based row holding column titles.
const headerRow = 1

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// Config selects the spreadsheet and tab.
type Config struct {
	SpreadsheetID string
	SheetName     string
}

// New builds a client over an existing Sheets service.
func New(svc *gsheet.Service, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: id, sheet: sheet}, nil
}

// NewWithTokenSource creates the Sheets service authenticated by ts. The token
// is asked for on every request, so ts controls caching and logout.
func NewWithTokenSource(ctx context.Context, cfg Config, ts oauth2.TokenSource) (*Client, error) {
	hc := newHTTPClientWithPooling()
	hc.Transport = &oauth2.Transport{Source: ts, Base: hc.Transport}
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	return New(svc, cfg)
}

// newHTTPClientWithPooling returns the transport the OAuth client wraps.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ReadAll reads every row below the header. Blank rows are skipped but still
// count toward the positions of the rows after them.
func (c *Client) ReadAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:G", quoteSheet(c.sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, auth.Classify(err))
	}
	return decodeRows(resp.Values), nil
}

// Append adds r after the last row; the sheet interprets the cells as if typed.
func (c *Client) Append(ctx context.Context, r core.ExpenseRecord) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1", quoteSheet(c.sheet))
	vr := &gsheet.ValueRange{Values: [][]any{toRow(r)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, auth.Classify(err))
	}
	return nil
}

// Update overwrites all seven cells of the row at pos.
func (c *Client) Update(ctx context.Context, pos core.RowPosition, r core.ExpenseRecord) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if int(pos) <= headerRow {
		return fmt.Errorf("%w: %s", core.ErrInvalidRowNumber, pos)
	}
	rng := fmt.Sprintf("%s!A%d:G%d", quoteSheet(c.sheet), int(pos), int(pos))
	vr := &gsheet.ValueRange{Values: [][]any{toRow(r)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, auth.Classify(err))
	}
	return nil
}

// Delete removes the row at pos; later rows move up by one.
func (c *Client) Delete(ctx context.Context, pos core.RowPosition) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if int(pos) <= headerRow {
		return fmt.Errorf("%w: %s", core.ErrInvalidRowNumber, pos)
	}
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(pos) - 1,
					EndIndex:   int64(pos),
					// StartIndex 0 is a legal value the JSON encoder would drop.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s in %s: %w", pos, c.sheet, auth.Classify(err))
	}
	return nil
}

// lookupSheetID resolves the numeric id of the tab, which row deletion needs.
func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", auth.Classify(err))
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheet)
}
