package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"enchiridion/internal/models"
	"enchiridion/internal/repository"
	"enchiridion/internal/store"
	"enchiridion/pkg/currency"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	LeaderboardSize  = 50
	auditSampleSize  = 5
	revenueTolerance = 0.01
)

var ErrInvalidPeriod = errors.New("invalid report period")

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	Name           string  `json:"name"`
	Points         float64 `json:"points"`
	Revenue        float64 `json:"revenue"`
	TotalReferrals int     `json:"total_referrals"`
	Badge          string  `json:"badge"`
}

type AuditSample struct {
	Row             int     `json:"row"`
	Email           string  `json:"email"`
	Points          float64 `json:"points"`
	Revenue         float64 `json:"revenue"`
	ExpectedRevenue float64 `json:"expected_revenue"`
	RevenueDisplay  string  `json:"revenue_display"`
	OK              bool    `json:"ok"`
}

type AuditReport struct {
	Healthy        bool          `json:"healthy"`
	TotalPartners  int           `json:"total_partners"`
	Samples        []AuditSample `json:"samples"`
	MissingHeaders []string      `json:"missing_headers"`
}

type ReportService struct {
	partners   *repository.PartnerRepository
	activities *repository.ActivityRepository
	locks      *store.KeyedMutex
	log        *zap.Logger
}

func NewReportService(
	partners *repository.PartnerRepository,
	activities *repository.ActivityRepository,
	locks *store.KeyedMutex,
	log *zap.Logger,
) *ReportService {
	return &ReportService{partners: partners, activities: activities, locks: locks, log: log.Named("report")}
}

// Badge maps a leaderboard position to its tier badge.
func Badge(rank int) string {
	switch {
	case rank == 1:
		return "Grand Champion"
	case rank <= 3:
		return "Gold"
	case rank <= 10:
		return "Silver"
	case rank <= 25:
		return "Bronze"
	}
	return "Rising Star"
}

// Leaderboard ranks partners by points and returns the top entries with
// privacy-filtered names.
func (s *ReportService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	list, err := s.partners.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Points != list[j].Points {
			return list[i].Points > list[j].Points
		}
		return list[i].TotalReferrals > list[j].TotalReferrals
	})
	if len(list) > LeaderboardSize {
		list = list[:LeaderboardSize]
	}
	out := make([]LeaderboardEntry, 0, len(list))
	for i, p := range list {
		out = append(out, LeaderboardEntry{
			Rank:           i + 1,
			Name:           PrivacyName(p.FullName),
			Points:         p.Points,
			Revenue:        p.Revenue,
			TotalReferrals: p.TotalReferrals,
			Badge:          Badge(i + 1),
		})
	}
	return out, nil
}

// MonthlyCSV writes the activity of one month as Date, Partner Name,
// Referral Code, Activity, Points.
func (s *ReportService) MonthlyCSV(ctx context.Context, month, year int, w io.Writer) error {
	if month < 1 || month > 12 || year < 2000 {
		return ErrInvalidPeriod
	}
	var (
		partners   []*models.Partner
		activities []models.Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		partners, err = s.partners.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = s.activities.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	names := make(map[string]string, len(partners))
	for _, p := range partners {
		names[strings.ToLower(p.ReferralCode)] = p.FullName
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Partner Name", "Referral Code", "Activity", "Points"}); err != nil {
		return err
	}
	for _, a := range activities {
		if a.Timestamp.IsZero() || int(a.Timestamp.Month()) != month || a.Timestamp.Year() != year {
			continue
		}
		name, ok := names[strings.ToLower(strings.TrimSpace(a.ReferralCode))]
		if !ok {
			name = "Unknown"
		}
		if err := cw.Write([]string{
			a.Timestamp.Format("2006-01-02 15:04"),
			name,
			a.ReferralCode,
			a.Type,
			strconv.FormatFloat(a.Points, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AuditVerify samples the last partner rows and checks revenue against
// points, plus whether the header row still has every expected column.
func (s *ReportService) AuditVerify(ctx context.Context) (*AuditReport, error) {
	list, err := s.partners.List(ctx)
	if err != nil {
		return nil, err
	}
	missing, err := s.partners.HeaderHealth(ctx)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{TotalPartners: len(list), MissingHeaders: missing, Samples: []AuditSample{}}
	if report.MissingHeaders == nil {
		report.MissingHeaders = []string{}
	}
	start := max(0, len(list)-auditSampleSize)
	healthy := len(missing) == 0
	for _, p := range list[start:] {
		sample := CheckRevenue(p)
		healthy = healthy && sample.OK
		report.Samples = append(report.Samples, sample)
	}
	report.Healthy = healthy
	return report, nil
}

// CheckRevenue verifies revenue == points*100 within the tolerance.
func CheckRevenue(p *models.Partner) AuditSample {
	expected := p.Points * currency.NairaPerPoint
	return AuditSample{
		Row:             p.Row,
		Email:           p.Email,
		Points:          p.Points,
		Revenue:         p.Revenue,
		ExpectedRevenue: currency.Round2(expected),
		RevenueDisplay:  currency.Naira(p.Revenue),
		OK:              math.Abs(p.Revenue-expected) <= revenueTolerance,
	}
}

// SyncAll rewrites revenue from points for every partner whose cells disagree
// and returns the number of rows repaired.
func (s *ReportService) SyncAll(ctx context.Context) (int, error) {
	list, err := s.partners.List(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, p := range list {
		if CheckRevenue(p).OK {
			continue
		}
		ok, err := s.repair(ctx, p.Email)
		if err != nil {
			return fixed, err
		}
		if ok {
			fixed++
		}
	}
	s.log.Info("revenue sync finished", zap.Int("checked", len(list)), zap.Int("fixed", fixed))
	return fixed, nil
}

func (s *ReportService) repair(ctx context.Context, email string) (bool, error) {
	unlock := s.locks.Lock(partnerLock(email))
	defer unlock()
	p, err := s.partners.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if CheckRevenue(p).OK {
		return false, nil
	}
	before := p.Revenue
	if err := s.partners.SetBalance(ctx, p, p.Points); err != nil {
		return false, err
	}
	s.log.Warn("revenue repaired", zap.String("email", p.Email),
		zap.Float64("before", before), zap.Float64("after", p.Revenue))
	return true, nil
}
