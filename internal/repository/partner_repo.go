package repository

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/store"
	"enchiridion/pkg/currency"

	"github.com/google/uuid"
)

type PartnerRepository struct {
	st     store.Store
	header atomic.Pointer[store.Header]
}

func NewPartnerRepository(st store.Store) *PartnerRepository {
	return &PartnerRepository{st: st}
}

// FieldChange is one cell of a partner update.
type FieldChange struct {
	Col   Column
	Value any
}

// DeterministicID derives a stable UUID from an email for rows whose ID cell is blank or malformed.
// It is stable, not collision resistant.
func DeterministicID(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	id, _ := uuid.FromBytes(sum[:])
	return id.String()
}

func (r *PartnerRepository) List(ctx context.Context) ([]*models.Partner, error) {
	recs, err := r.st.GetAllRecords(ctx, TablePartners)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	if len(recs) > 0 {
		r.header.Store(recs[0].Header)
	}
	out := make([]*models.Partner, 0, len(recs))
	for _, rec := range recs {
		if rec.Blank() || ColEmail.From(rec) == "" {
			continue
		}
		out = append(out, partnerFromRecord(rec))
	}
	return out, nil
}

func (r *PartnerRepository) find(ctx context.Context, match func(*models.Partner) bool) (*models.Partner, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		if match(p) {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *PartnerRepository) GetByEmail(ctx context.Context, email string) (*models.Partner, error) {
	return r.find(ctx, func(p *models.Partner) bool { return equalFold(p.Email, email) })
}

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	return r.find(ctx, func(p *models.Partner) bool { return equalFold(p.ID, id) })
}

func (r *PartnerRepository) GetByReferralCode(ctx context.Context, code string) (*models.Partner, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrNotFound
	}
	return r.find(ctx, func(p *models.Partner) bool { return equalFold(p.ReferralCode, code) })
}

// Create appends the partner as a full 28-column row.
func (r *PartnerRepository) Create(ctx context.Context, p *models.Partner) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DateJoined.IsZero() {
		p.DateJoined = time.Now().UTC()
	}
	if p.PayoutStatus == "" {
		p.PayoutStatus = domain.PayoutPending
	}
	p.Revenue = currency.RevenueFor(p.Points)
	row := []any{
		p.Email, p.HashedPassword, p.FullName, p.ReferralCode,
		p.Points, p.Revenue, p.LifetimeEarnings, p.TotalReferrals, p.PayoutStatus,
		p.BankName, p.AccountName, p.AccountNumber,
		p.ReferredBy, p.RegistrationIP, formatTime(p.DateJoined),
		formatBool(p.IsSuperuser), formatBool(p.IsActive), formatBool(p.IsVerified),
		p.LastPayout, p.LastIP, p.ID, p.Milestone1, p.Milestone2,
		p.State, p.Country, p.Profession, p.Phone, p.Institution,
	}
	if err := r.st.AppendRow(ctx, TablePartners, row); err != nil {
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

// Update re-scans for the row by email and writes one cell per change.
func (r *PartnerRepository) Update(ctx context.Context, email string, changes ...FieldChange) error {
	p, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	h := r.header.Load()
	for _, ch := range changes {
		if err := r.st.UpdateCell(ctx, TablePartners, p.Row, ch.Col.In(h), ch.Value); err != nil {
			return fmt.Errorf("update partner %s: %w", ch.Col.Aliases[0], err)
		}
	}
	return nil
}

// SetBalance writes points and the matching revenue in one range write so
// the two cells never drift apart.
func (r *PartnerRepository) SetBalance(ctx context.Context, p *models.Partner, points float64) error {
	points = currency.Round2(points)
	revenue := currency.RevenueFor(points)
	h := r.header.Load()
	pc, rc := ColPoints.In(h), ColRevenue.In(h)
	var err error
	if rc == pc+1 {
		err = r.st.UpdateRange(ctx, TablePartners, store.RowRange(pc, rc, p.Row), [][]any{{points, revenue}})
	} else {
		err = r.st.BatchUpdate(ctx, TablePartners, []store.CellUpdate{
			{Row: p.Row, Col: pc, Value: points},
			{Row: p.Row, Col: rc, Value: revenue},
		})
	}
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	p.Points, p.Revenue = points, revenue
	return nil
}

// SaveSettlement writes the payout fields of p in a single batch.
func (r *PartnerRepository) SaveSettlement(ctx context.Context, p *models.Partner) error {
	h := r.header.Load()
	cells := []store.CellUpdate{
		{Row: p.Row, Col: ColPoints.In(h), Value: p.Points},
		{Row: p.Row, Col: ColRevenue.In(h), Value: p.Revenue},
		{Row: p.Row, Col: ColLifetime.In(h), Value: p.LifetimeEarnings},
		{Row: p.Row, Col: ColPayoutStatus.In(h), Value: p.PayoutStatus},
		{Row: p.Row, Col: ColLastPayout.Index, Value: p.LastPayout},
	}
	if err := r.st.BatchUpdate(ctx, TablePartners, cells); err != nil {
		return fmt.Errorf("save settlement: %w", err)
	}
	return nil
}

// HeaderHealth compares the live header row with the expected layout and
// returns the expected names that are not found.
func (r *PartnerRepository) HeaderHealth(ctx context.Context) ([]string, error) {
	raw, err := r.st.GetHeaders(ctx, TablePartners)
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	h := store.NewHeader(raw)
	var missing []string
	for _, c := range partnerColumns {
		if _, ok := h.Index(c.Aliases...); !ok {
			missing = append(missing, c.Aliases[0])
		}
	}
	return missing, nil
}

func partnerFromRecord(rec store.Record) *models.Partner {
	p := &models.Partner{
		Row:              rec.Row,
		Email:            ColEmail.From(rec),
		HashedPassword:   ColPassword.From(rec),
		FullName:         ColFullName.From(rec),
		ReferralCode:     ColReferralCode.From(rec),
		Points:           currency.SafeFloat(ColPoints.From(rec)),
		Revenue:          currency.SafeFloat(ColRevenue.From(rec)),
		LifetimeEarnings: currency.SafeFloat(ColLifetime.From(rec)),
		TotalReferrals:   parseInt(ColTotalReferrals.From(rec)),
		PayoutStatus:     strings.ToUpper(ColPayoutStatus.From(rec)),
		BankName:         ColBankName.From(rec),
		AccountName:      ColAccountName.From(rec),
		AccountNumber:    ColAccountNumber.From(rec),
		ReferredBy:       ColReferredBy.From(rec),
		RegistrationIP:   ColRegistrationIP.From(rec),
		DateJoined:       parseTime(ColDateJoined.From(rec)),
		IsSuperuser:      parseBool(ColIsSuperuser.From(rec)),
		IsActive:         parseBool(ColIsActive.From(rec)),
		IsVerified:       parseBool(ColIsVerified.From(rec)),
		LastPayout:       currency.SafeFloat(rec.Col(ColLastPayout.Index)),
		LastIP:           ColLastIP.From(rec),
		Milestone1:       strings.ToUpper(ColMilestone1.From(rec)),
		Milestone2:       strings.ToUpper(ColMilestone2.From(rec)),
		State:            ColState.From(rec),
		Country:          ColCountry.From(rec),
		Profession:       ColProfession.From(rec),
		Phone:            ColPhone.From(rec),
		Institution:      ColInstitution.From(rec),
	}
	if p.PayoutStatus == "" {
		p.PayoutStatus = domain.PayoutPending
	}
	id := ColID.From(rec)
	if _, err := uuid.Parse(id); err != nil {
		id = DeterministicID(p.Email)
	}
	p.ID = id
	return p
}
