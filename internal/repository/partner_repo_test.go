package repository

import (
	"context"
	"errors"
	"testing"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/store"

	"github.com/google/uuid"
)

func newPartnerRepo(t *testing.T) (*PartnerRepository, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := EnsureTables(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	return NewPartnerRepository(st), st
}

func TestPartnerCreateAndLookup(t *testing.T) {
	repo, st := newPartnerRepo(t)
	ctx := context.Background()
	p := &models.Partner{Email: "ada@x.ng", FullName: "Ada Obi", ReferralCode: "ADA01", Points: 12.5, IsActive: true}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	if got := len(st.Grid(TablePartners)[1]); got != 28 {
		t.Errorf("row width = %d, want 28", got)
	}

	byCode, err := repo.GetByReferralCode(ctx, "ada01")
	if err != nil {
		t.Fatal(err)
	}
	if byCode.Row != 2 || byCode.Revenue != 1250 || byCode.PayoutStatus != domain.PayoutPending || !byCode.IsActive {
		t.Errorf("partner = %+v", byCode)
	}
	if byID, err := repo.GetByID(ctx, p.ID); err != nil || byID.Email != "ada@x.ng" {
		t.Errorf("GetByID = %+v, %v", byID, err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@x.ng"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing partner err = %v", err)
	}
	if _, err := repo.GetByReferralCode(ctx, " "); !errors.Is(err, ErrNotFound) {
		t.Errorf("blank code err = %v", err)
	}
}

func TestDeterministicIDForLegacyRows(t *testing.T) {
	repo, st := newPartnerRepo(t)
	header := TableHeaders[TablePartners]
	row := make([]string, len(header))
	row[0], row[3], row[20] = "Legacy@X.ng", "OLD01", "not-a-uuid"
	st.Seed(TablePartners, [][]string{header, row})

	p, err := repo.GetByEmail(context.Background(), "legacy@x.ng")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Fatalf("ID %q is not a uuid", p.ID)
	}
	if p.ID != DeterministicID(" legacy@x.NG") {
		t.Error("derived ID must not depend on case or spacing")
	}
}

func TestSetBalanceWithReorderedColumns(t *testing.T) {
	repo, st := newPartnerRepo(t)
	ctx := context.Background()
	// REVENUE moved away from POINTS, and the header spelling differs.
	st.Seed(TablePartners, [][]string{
		{"Email Address", "POINTS", "Code", "Revenue NGN"},
		{"ada@x.ng", "1", "ADA01", "100"},
	})
	p, err := repo.GetByReferralCode(ctx, "ADA01")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SetBalance(ctx, p, 2.346); err != nil {
		t.Fatal(err)
	}
	row := st.Grid(TablePartners)[1]
	if row[1] != "2.35" || row[3] != "235" {
		t.Errorf("row = %v, want points 2.35 and revenue 235", row)
	}
	if p.Points != 2.35 || p.Revenue != 235 {
		t.Errorf("partner = %v / %v", p.Points, p.Revenue)
	}
}

func TestUpdateWritesByHeader(t *testing.T) {
	repo, st := newPartnerRepo(t)
	ctx := context.Background()
	if err := repo.Create(ctx, &models.Partner{Email: "ada@x.ng", ReferralCode: "ADA01"}); err != nil {
		t.Fatal(err)
	}
	err := repo.Update(ctx, "ADA@x.ng",
		FieldChange{Col: ColBankName, Value: "GTBank"},
		FieldChange{Col: ColAccountNumber, Value: "0123456789"},
	)
	if err != nil {
		t.Fatal(err)
	}
	row := st.Grid(TablePartners)[1]
	if row[ColBankName.Index-1] != "GTBank" || row[ColAccountNumber.Index-1] != "0123456789" {
		t.Errorf("row = %v", row)
	}
	if err := repo.Update(ctx, "ghost@x.ng", FieldChange{Col: ColBankName, Value: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing partner err = %v", err)
	}
}

func TestHeaderHealth(t *testing.T) {
	repo, st := newPartnerRepo(t)
	missing, err := repo.HeaderHealth(context.Background())
	if err != nil || len(missing) != 0 {
		t.Fatalf("full header: missing %v, %v", missing, err)
	}
	st.Seed(TablePartners, [][]string{{"USERNAME", "POINTS"}})
	missing, _ = repo.HeaderHealth(context.Background())
	if len(missing) != len(partnerColumns)-2 {
		t.Errorf("missing = %d, want %d", len(missing), len(partnerColumns)-2)
	}
}

func TestMilestoneKey(t *testing.T) {
	if got := MilestoneKey("  Bola@X.ng ", domain.MilestoneVerification); got != "bola@x.ng_verification" {
		t.Errorf("MilestoneKey = %q", got)
	}
}
