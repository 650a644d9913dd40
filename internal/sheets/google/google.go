package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"budgetbook/internal/core"
	ports "budgetbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the exporter.
type Options struct {
	SpreadsheetID string
	// SheetName is the base tab name; the current year is prefixed and the open
	// balance and summary go to "<year> <base>" and "<year> <base> Summary".
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// Client exports reports into a Google spreadsheet, replacing the tab contents on
// every export.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	balanceSheet  string
	summarySheet  string
}

var _ ports.ReportExporter = (*Client)(nil)

// New creates a Sheets client authenticated with service-account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Open balance"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	year := time.Now().Year()
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		balanceSheet:  yearPrefixedName(base, year),
		summarySheet:  yearPrefixedName(base+" Summary", year),
	}, nil
}

// newSheetsService initializes a Sheets Service from inline JSON, a credentials file,
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.CredentialsJSON))
	credentialsFile := strings.TrimSpace(opts.CredentialsFile)
	if len(credentialsJSON) == 0 && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline JSON credentials")
	case credentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", credentialsFile)
		var err error
		credentialsJSON, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ExportOpenBalance(ctx context.Context, ob core.OpenBalance, at time.Time) error {
	return c.replace(ctx, c.balanceSheet, balanceValues(ob, at))
}

func (c *Client) ExportSummary(ctx context.Context, s core.Summary, at time.Time) error {
	return c.replace(ctx, c.summarySheet, summaryValues(s, at))
}

// replace clears the tab and writes values starting at A1.
func (c *Client) replace(ctx context.Context, sheet string, values [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", sheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", clearRange, err)
	}

	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Report exported to Google Sheets", "sheet", sheet, "rows", len(values))
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
