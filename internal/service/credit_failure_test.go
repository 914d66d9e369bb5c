package service

import (
	"context"
	"encoding/json"
	"testing"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"

	"go.uber.org/zap"
)

func purchasePayload(t *testing.T, pc PurchaseCredit) []byte {
	t.Helper()
	b, err := json.Marshal(pc)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func countMilestones(t *testing.T, e *testEnv, milestoneType string) int {
	t.Helper()
	list, err := e.milestones.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, m := range list {
		if m.Type == milestoneType {
			n++
		}
	}
	return n
}

func TestPurchaseRedeliveryAfterWriteFailure(t *testing.T) {
	tests := []struct {
		name       string
		arm        func(*faultyStore)
		wantPoints float64
	}{
		// The credit is complete once the balance is written; the audit row is best effort.
		{"activity append fails", func(f *faultyStore) { f.armAppend(repository.TableActivityLog) }, domain.PointsBookPurchase},
		// The key is already recorded, so a redelivery must not pay.
		{"balance write fails", func(f *faultyStore) { f.armRange(repository.TablePartners) }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			e.referrer(t)
			faulty := newFaultyStore(e.st)
			referrals, _ := e.overStore(faulty)
			handler := PurchaseCreditHandler(referrals, zap.NewNop())
			payload := purchasePayload(t, PurchaseCredit{
				ReferralCode: "ADA01",
				BuyerEmail:   "buyer@enchiridion.test",
				Reference:    "ps_ref_9",
				AmountNaira:  15000,
			})

			tt.arm(faulty)
			_ = handler(ctx, payload)
			if err := handler(ctx, payload); err != nil {
				t.Fatalf("redelivery: %v", err)
			}

			if p := e.mustPartner(t, "ada@enchiridion.test"); p.Points != tt.wantPoints {
				t.Errorf("referrer points = %v, want %v", p.Points, tt.wantPoints)
			}
			if n := countMilestones(t, e, domain.MilestoneBookPurchase); n != 1 {
				t.Errorf("book purchase milestones = %d, want 1", n)
			}
		})
	}
}

func TestMilestoneAppendFailureLeavesBalance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.referrer(t)
	faulty := newFaultyStore(e.st)
	referrals, _ := e.overStore(faulty)

	faulty.armAppend(repository.TableMilestones)
	if _, err := referrals.RecordVisit(ctx, "ADA01", "visitor-1", "10.0.0.9"); err == nil {
		t.Fatal("expected the milestone failure to surface")
	}
	if p := e.mustPartner(t, "ada@enchiridion.test"); p.Points != 0 {
		t.Fatalf("points moved without an idempotency row: %v", p.Points)
	}

	res, err := referrals.RecordVisit(ctx, "ADA01", "visitor-1", "10.0.0.9")
	if err != nil || res.Status != domain.StatusCredited {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if p := e.mustPartner(t, "ada@enchiridion.test"); p.Points != e.cfg.Referral.VisitPoints {
		t.Errorf("points = %v, want %v", p.Points, e.cfg.Referral.VisitPoints)
	}
}

func TestTierBonusBalanceFailureNotRepaid(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addPartner(t, &models.Partner{
		Email: "tobi@enchiridion.test", FullName: "Tobi Lawal", ReferralCode: "TOBI50",
		Points: 10, TotalReferrals: 50,
	})
	faulty := newFaultyStore(e.st)
	_, tiers := e.overStore(faulty)

	faulty.armRange(repository.TablePartners)
	if _, err := tiers.ApplyTierBonus(ctx, "TOBI50", 50, "admin@enchiridion.test"); err == nil {
		t.Fatal("expected the balance failure to surface")
	}
	again, err := tiers.ApplyTierBonus(ctx, "TOBI50", 50, "admin@enchiridion.test")
	if err != nil {
		t.Fatal(err)
	}
	if !again.AlreadyApplied {
		t.Errorf("second apply = %+v, want already applied", again)
	}
	if p := e.mustPartner(t, "tobi@enchiridion.test"); p.Points != 10 {
		t.Errorf("points = %v, want the untouched 10", p.Points)
	}
}
