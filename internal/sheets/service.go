// Package sheets stores ledger tables as tabs of one Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"pricewatch/internal/logger"
	"pricewatch/internal/store"
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service implements store.Store on a spreadsheet. Each table is a tab named after it.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsService creates a service for the spreadsheet at sheetURL using the
// service account from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return New(ctx, spreadsheetID, option.WithHTTPClient(config.Client(ctx)))
}

// New creates a service for spreadsheetID with explicit client options.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Service, error) {
	const op = "New"

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Sheets store ready")

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
		sheetIDs:      make(map[string]int64),
	}, nil
}

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// quoteTable renders a tab name for A1 notation; names with spaces must be quoted.
func quoteTable(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// rowRange addresses the row with 0-based index, header included.
func rowRange(table string, index int) string {
	return fmt.Sprintf("%s!A%d", quoteTable(table), index+1)
}

// EnsureTable creates the tab if missing and writes a bold header into an empty one.
func (s *Service) EnsureTable(ctx context.Context, table string, header []string) error {
	const op = "EnsureTable"

	sheetID, exists, err := s.lookupSheet(ctx, table)
	if err != nil {
		return classify(op, table, err)
	}

	if !exists {
		s.log.Info().Str("sheet", table).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: table}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return classify(op, table, fmt.Errorf("failed to create sheet: %w", err))
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		s.rememberSheet(table, sheetID)
	}

	headerRange := rowRange(table, 0)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return classify(op, table, fmt.Errorf("failed to get headers: %w", err))
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", table).Msg("Adding headers to sheet")

	valueRange := &sheets.ValueRange{Values: [][]interface{}{toValues(header)}}
	_, err = s.sheetsService.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classify(op, table, fmt.Errorf("failed to add headers: %w", err))
	}

	if err := s.formatHeaders(ctx, sheetID, len(header)); err != nil {
		s.log.Warn().Err(err).Str("sheet", table).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and auto-sizes its columns.
func (s *Service) formatHeaders(ctx context.Context, sheetID int64, columns int) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadRows returns every row of the tab as text. Trailing empty cells are omitted
// by the API, so rows may be shorter than the header.
func (s *Service) ReadRows(ctx context.Context, table string) ([][]string, error) {
	const op = "ReadRows"

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, quoteTable(table)).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, table, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, values := range resp.Values {
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}

	s.log.Debug().
		Str("sheet", table).
		Int("rows", len(rows)).
		Msg("Read sheet")

	return rows, nil
}

// AppendRow adds row after the last non-empty row of the tab.
func (s *Service) AppendRow(ctx context.Context, table string, row []string) error {
	const op = "AppendRow"

	valueRange := &sheets.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err := s.sheetsService.Spreadsheets.Values.Append(s.spreadsheetID, quoteTable(table)+"!A1", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classify(op, table, err)
	}
	return nil
}

// UpdateRow overwrites the row at index.
func (s *Service) UpdateRow(ctx context.Context, table string, index int, row []string) error {
	const op = "UpdateRow"

	if index < 0 {
		return store.NewError(op, table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err := s.sheetsService.Spreadsheets.Values.Update(s.spreadsheetID, rowRange(table, index), valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classify(op, table, err)
	}
	return nil
}

// DeleteRow removes the row at index; rows below shift up.
func (s *Service) DeleteRow(ctx context.Context, table string, index int) error {
	const op = "DeleteRow"

	if index < 0 {
		return store.NewError(op, table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}

	sheetID, exists, err := s.lookupSheet(ctx, table)
	if err != nil {
		return classify(op, table, err)
	}
	if !exists {
		return store.NewError(op, table, store.ErrNotFound)
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: int64(index),
						EndIndex:   int64(index + 1),
					},
				},
			},
		},
	}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return classify(op, table, err)
	}
	return nil
}

// ReplaceRows clears the tab and writes rows from A1. The two calls are not atomic.
func (s *Service) ReplaceRows(ctx context.Context, table string, rows [][]string) error {
	const op = "ReplaceRows"

	_, err := s.sheetsService.Spreadsheets.Values.Clear(s.spreadsheetID, quoteTable(table), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return classify(op, table, fmt.Errorf("failed to clear: %w", err))
	}
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = toValues(row)
	}
	_, err = s.sheetsService.Spreadsheets.Values.Update(s.spreadsheetID, quoteTable(table)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classify(op, table, fmt.Errorf("failed to write: %w", err))
	}

	s.log.Debug().
		Str("sheet", table).
		Int("rows", len(rows)).
		Msg("Rewrote sheet")
	return nil
}

func (s *Service) lookupSheet(ctx context.Context, table string) (int64, bool, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[table]
	s.mu.Unlock()
	if ok {
		return id, true, nil
	}

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties == nil {
			continue
		}
		s.rememberSheet(sheet.Properties.Title, sheet.Properties.SheetId)
		if sheet.Properties.Title == table {
			id, ok = sheet.Properties.SheetId, true
		}
	}
	return id, ok, nil
}

func (s *Service) rememberSheet(table string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheetIDs[table] = id
}

func toValues(row []string) []interface{} {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return values
}

// classify maps API and network failures onto the store sentinels.
func classify(op, table string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return store.NewError(op, table, fmt.Errorf("%w: %w", store.ErrNotFound, err))
		case apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range"):
			// a missing tab is reported as an unparsable range
			return store.NewError(op, table, fmt.Errorf("%w: %w", store.ErrNotFound, err))
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return store.NewError(op, table, store.MarkTransient(err))
		}
		return store.NewError(op, table, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.NewError(op, table, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return store.NewError(op, table, store.MarkTransient(err))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return store.NewError(op, table, store.MarkTransient(err))
	}
	// refused, reset and broken connections
	var opErr *net.OpError
	if errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return store.NewError(op, table, store.MarkTransient(err))
	}

	return store.NewError(op, table, err)
}
