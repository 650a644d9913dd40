package google

import (
	"context"
	"strings"
	"testing"
	"time"

	"budgetbook/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "test-id",
		CredentialsFile: t.TempDir() + "/missing.json",
	})
	if err == nil {
		t.Fatal("expected error with missing credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_NoCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
}

func TestClient_ExportWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", balanceSheet: "2024 Open balance"}
	err := c.ExportOpenBalance(context.Background(), core.OpenBalance{}, time.Now())
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Open balance", 2024, "2024 Open balance"},
		{"2023 Open balance", 2024, "2023 Open balance"},
		{"  ", 2024, ""},
		{"1800 Old", 2024, "2024 1800 Old"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestBalanceValues(t *testing.T) {
	at := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	ob := core.OpenBalance{
		Groups: []core.PaymentMethodBalance{
			{PaymentMethodID: 2, Description: "Cash", Total: core.Money{Cents: 1050}, Items: 1},
			{PaymentMethodID: 1, Description: "Visa", Total: core.Money{Cents: 6667}, Items: 2},
		},
		GrandTotal: core.Money{Cents: 7717},
	}

	rows := balanceValues(ob, at)
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0][1] != "2024-06-10 09:30:00" {
		t.Errorf("timestamp cell = %v", rows[0][1])
	}
	if rows[2][0] != "Cash" || rows[2][2] != 10.5 {
		t.Errorf("first group row = %v", rows[2])
	}
	if rows[4][0] != "Total" || rows[4][2] != 77.17 {
		t.Errorf("total row = %v", rows[4])
	}
}

func TestSummaryValues(t *testing.T) {
	s := core.Summary{
		Filter: core.SummaryFilter{Paid: core.UnpaidOnly, DateField: core.FieldDueDate, GroupBy: core.GroupCategory},
		Groups: []core.SummaryGroup{{
			Key: "Home",
			Rows: []core.SummaryRow{
				{Description: "TV", Amount: core.Money{Cents: 3334}, InstallmentNumber: 1, InstallmentCount: 3, DueDate: core.NewDate(2024, 7, 5)},
				{Description: "Rent", Amount: core.Money{Cents: 50000}, InstallmentNumber: 1, InstallmentCount: 1, DueDate: core.NewDate(2024, 7, 1)},
			},
			Subtotal: core.Money{Cents: 53334},
		}},
		GrandTotal: core.Money{Cents: 53334},
	}

	rows := summaryValues(s, time.Now())
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	if rows[2][1] != "2024-07-05" || rows[2][3] != "1/3" || rows[2][5] != "No" {
		t.Errorf("installment row = %v", rows[2])
	}
	if rows[3][3] != "" {
		t.Errorf("single-installment label = %v, want empty", rows[3][3])
	}
	if rows[4][2] != "Subtotal" || rows[4][4] != 533.34 {
		t.Errorf("subtotal row = %v", rows[4])
	}
}
