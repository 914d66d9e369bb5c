package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
)

func TestApplyTierBonusOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addPartner(t, &models.Partner{
		Email: "tobi@enchiridion.test", FullName: "Tobi Lawal", ReferralCode: "TOBI50",
		Points: 10, TotalReferrals: 50,
	})

	res, err := e.tiers.ApplyTierBonus(ctx, "TOBI50", 50, "admin@enchiridion.test")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.AlreadyApplied || res.NewPoints != 30 || res.NewRevenue != 3000 {
		t.Fatalf("first apply = %+v", res)
	}
	p := e.mustPartner(t, "tobi@enchiridion.test")
	if p.Milestone1 != domain.ClaimedFlag {
		t.Errorf("milestone 1 flag = %q, want CLAIMED", p.Milestone1)
	}

	again, err := e.tiers.ApplyTierBonus(ctx, "TOBI50", 50, "admin@enchiridion.test")
	if err != nil {
		t.Fatal(err)
	}
	if !again.AlreadyApplied || again.NewPoints != 30 {
		t.Errorf("second apply = %+v, want already applied at 30 points", again)
	}
}

func TestApplyTierBonusHonoursAuditTrail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addPartner(t, &models.Partner{
		Email: "tobi@enchiridion.test", FullName: "Tobi Lawal", ReferralCode: "TOBI50", TotalReferrals: 50,
	})
	// A grant made before the flag column existed.
	if err := e.logs.AppendAudit(ctx, &models.AuditEntry{
		Timestamp: time.Now(), Actor: "admin", Action: "tier_bonus", Target: "tobi@enchiridion.test",
		Details: "Granted 50 Referrals Milestone to tobi@enchiridion.test",
	}); err != nil {
		t.Fatal(err)
	}
	res, err := e.tiers.ApplyTierBonus(ctx, "TOBI50", 50, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadyApplied {
		t.Errorf("got %+v, want already applied", res)
	}
}

func TestApplyTierBonusNotBlockedBySimilarEmail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addPartner(t, &models.Partner{Email: "ba@x.ng", FullName: "Bayo Ade", ReferralCode: "BAYO1", TotalReferrals: 50})
	e.addPartner(t, &models.Partner{Email: "a@x.ng", FullName: "Amaka Obi", ReferralCode: "AMAKA", TotalReferrals: 50})

	if _, err := e.tiers.ApplyTierBonus(ctx, "BAYO1", 50, "admin"); err != nil {
		t.Fatal(err)
	}
	res, err := e.tiers.ApplyTierBonus(ctx, "AMAKA", 50, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if res.AlreadyApplied || res.NewPoints != 20 {
		t.Errorf("got %+v, want a fresh 20 point grant", res)
	}
}

func TestApplyTierBonusRejects(t *testing.T) {
	e := newTestEnv(t)
	e.addPartner(t, &models.Partner{
		Email: "tobi@enchiridion.test", FullName: "Tobi Lawal", ReferralCode: "TOBI50", TotalReferrals: 50,
	})
	tests := []struct {
		name      string
		code      string
		threshold int
		want      error
	}{
		{"unknown tier", "TOBI50", 75, ErrInvalidTier},
		{"not enough referrals", "TOBI50", 100, ErrNotEligible},
		{"unknown partner", "NOBODY", 50, ErrPartnerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.tiers.ApplyTierBonus(context.Background(), tt.code, tt.threshold, "admin")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func purchases(email string, n int, start time.Time) []models.Milestone {
	out := make([]models.Milestone, n)
	for i := range out {
		out[i] = models.Milestone{
			ReferrerEmail: email,
			Type:          domain.MilestoneBookPurchase,
			Timestamp:     start.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestLegacyRank(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		n        int
		title    string
		toNext   int
		attained *time.Time
	}{
		{0, domain.RankSeeker, 6, nil},
		{5, domain.RankSeeker, 1, nil},
		{6, domain.RankSage, 10, ptr(start.Add(5 * time.Hour))},
		{16, domain.RankMaster, 0, ptr(start.Add(15 * time.Hour))},
		{20, domain.RankMaster, 0, ptr(start.Add(15 * time.Hour))},
	}
	for _, tt := range tests {
		list := purchases("ada@x.ng", tt.n, start)
		list = append(list, models.Milestone{ReferrerEmail: "other@x.ng", Type: domain.MilestoneBookPurchase})
		r := LegacyRank(list, "ADA@x.ng")
		if r.Title != tt.title || r.Purchases != tt.n || r.ToNext != tt.toNext {
			t.Errorf("n=%d: got %+v", tt.n, r)
		}
		switch {
		case tt.attained == nil && r.AttainedAt != nil:
			t.Errorf("n=%d: unexpected attained date", tt.n)
		case tt.attained != nil && (r.AttainedAt == nil || !r.AttainedAt.Equal(*tt.attained)):
			t.Errorf("n=%d: attained = %v, want %v", tt.n, r.AttainedAt, tt.attained)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestPrivacyName(t *testing.T) {
	tests := map[string]string{
		"":                      "Anonymous Partner",
		"ada":                   "Ada",
		"ada obi":               "A. Obi",
		"Chukwuemeka N. OKAFOR": "C. Okafor",
	}
	for in, want := range tests {
		if got := PrivacyName(in); got != want {
			t.Errorf("PrivacyName(%q) = %q, want %q", in, got, want)
		}
	}
}
