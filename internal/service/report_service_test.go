package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"
	"time"

	"enchiridion/internal/models"
	"enchiridion/internal/repository"
)

// seedPartnerRows writes raw partner rows the way a hand-edited sheet would hold them.
func seedPartnerRows(e *testEnv, rows ...map[int]string) {
	header := repository.TableHeaders[repository.TablePartners]
	grid := [][]string{header}
	for _, cells := range rows {
		row := make([]string, len(header))
		for col, v := range cells {
			row[col-1] = v
		}
		grid = append(grid, row)
	}
	e.st.Seed(repository.TablePartners, grid)
}

func TestAuditVerifyAcceptsFormattedRevenue(t *testing.T) {
	e := newTestEnv(t)
	seedPartnerRows(e, map[int]string{1: "ada@x.ng", 3: "Ada Obi", 4: "ADA01", 5: "30.2", 6: "NGN 3,020.00"})
	report, err := e.reports.AuditVerify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Healthy || len(report.Samples) != 1 || !report.Samples[0].OK {
		t.Errorf("report = %+v", report)
	}
	if len(report.MissingHeaders) != 0 {
		t.Errorf("missing headers = %v", report.MissingHeaders)
	}
}

func TestAuditVerifyFlagsDriftAndSyncRepairs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedPartnerRows(e,
		map[int]string{1: "ada@x.ng", 4: "ADA01", 5: "10", 6: "1000"},
		map[int]string{1: "bola@x.ng", 4: "BOLA1", 5: "12.5", 6: "₦1,000.00"},
	)
	report, err := e.reports.AuditVerify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Healthy {
		t.Fatal("drifted revenue must make the report unhealthy")
	}

	fixed, err := e.reports.SyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fixed != 1 {
		t.Errorf("fixed = %d, want 1", fixed)
	}
	if p := e.mustPartner(t, "bola@x.ng"); p.Revenue != 1250 {
		t.Errorf("revenue after sync = %v, want 1250", p.Revenue)
	}
	report, _ = e.reports.AuditVerify(ctx)
	if !report.Healthy {
		t.Errorf("report after sync = %+v", report)
	}
}

func TestAuditVerifyReportsMissingHeaders(t *testing.T) {
	e := newTestEnv(t)
	e.st.Seed(repository.TablePartners, [][]string{{"USERNAME", "POINTS", "REVENUE"}})
	report, err := e.reports.AuditVerify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Healthy || len(report.MissingHeaders) == 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestLeaderboardRanksAndBadges(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 55; i++ {
		e.addPartner(t, &models.Partner{
			Email:        fmt.Sprintf("p%02d@x.ng", i),
			FullName:     fmt.Sprintf("Partner Number%02d", i),
			ReferralCode: fmt.Sprintf("P%02d", i),
			Points:       float64(i),
		})
	}
	board, err := e.reports.Leaderboard(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != LeaderboardSize {
		t.Fatalf("len = %d, want %d", len(board), LeaderboardSize)
	}
	if board[0].Points != 54 || board[0].Badge != "Grand Champion" || board[0].Name != "P. Number54" {
		t.Errorf("first = %+v", board[0])
	}
	if board[49].Rank != 50 || board[49].Badge != "Rising Star" {
		t.Errorf("last = %+v", board[49])
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{1, "Grand Champion"}, {2, "Gold"}, {3, "Gold"}, {4, "Silver"}, {10, "Silver"},
		{11, "Bronze"}, {25, "Bronze"}, {26, "Rising Star"},
	}
	for _, tt := range tests {
		if got := Badge(tt.rank); got != tt.want {
			t.Errorf("Badge(%d) = %q, want %q", tt.rank, got, tt.want)
		}
	}
}

func TestMonthlyCSV(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.referrer(t)
	march := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	for _, a := range []models.Activity{
		{Timestamp: march, ReferralCode: "ADA01", Type: "visit", Points: 0.1},
		{Timestamp: march.AddDate(0, 1, 0), ReferralCode: "ADA01", Type: "visit", Points: 0.1},
		{Timestamp: march, ReferralCode: "LOST", Type: "share", Points: 0},
	} {
		if err := e.activities.Append(ctx, &a); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := e.reports.MonthlyCSV(ctx, 3, 2026, &buf); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][1] != "Ada Obi" || rows[1][4] != "0.1" || rows[1][0] != "2026-03-14 09:30" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][1] != "Unknown" {
		t.Errorf("orphan activity name = %q, want Unknown", rows[2][1])
	}

	if err := e.reports.MonthlyCSV(ctx, 13, 2026, &buf); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}
}
