package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"enchiridion/config"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"
	"enchiridion/internal/store"

	"go.uber.org/zap"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []interface{}
}

func (f *recordingFeed) BroadcastAll(payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload)
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type testEnv struct {
	cfg        *config.Config
	st         *store.MemoryStore
	outbox     *repository.MemoryOutbox
	worker     *OutboxWorker
	feed       *recordingFeed
	partners   *repository.PartnerRepository
	activities *repository.ActivityRepository
	milestones *repository.MilestoneRepository
	logs       *repository.LogRepository
	referrals  *ReferralService
	tiers      *MilestoneService
	payouts    *PayoutService
	reports    *ReportService
	auth       *AuthService
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{FrontendURL: "https://enchiridion.test"},
		JWT: config.JWTConfig{
			AccessSecret: "test-secret",
			AccessExpiry: time.Hour,
			ActionExpiry: time.Hour,
			Issuer:       "enchiridion",
		},
		Mail:     config.MailConfig{Admin: "admin@enchiridion.test"},
		Referral: config.ReferralConfig{VisitPoints: 0.1, SharePoints: 0, BlockSharedIP: true},
		Outbox:   config.OutboxConfig{BatchSize: 50, MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Minute},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	cfg := testConfig()
	st := store.NewMemoryStore()
	if err := repository.EnsureTables(ctx, st); err != nil {
		t.Fatal(err)
	}
	e := &testEnv{
		cfg:        cfg,
		st:         st,
		outbox:     repository.NewMemoryOutbox(),
		feed:       &recordingFeed{},
		partners:   repository.NewPartnerRepository(st),
		activities: repository.NewActivityRepository(st),
		milestones: repository.NewMilestoneRepository(st),
		logs:       repository.NewLogRepository(st),
	}
	locks := store.NewKeyedMutex()
	e.worker = NewOutboxWorker(e.outbox, cfg.Outbox, log)
	notify := NewNotificationService(e.worker, cfg, log)
	onboarding := repository.NewOnboardingRepository(st)
	e.referrals = NewReferralService(e.partners, e.activities, e.milestones, onboarding, e.logs, locks, notify, e.feed, cfg.Referral, log)
	e.tiers = NewMilestoneService(e.partners, e.activities, e.milestones, e.logs, locks, notify, e.feed, log)
	e.payouts = NewPayoutService(e.partners, e.activities, e.logs, locks, notify, log)
	e.reports = NewReportService(e.partners, e.activities, locks, log)
	e.auth = NewAuthService(cfg, e.partners, e.referrals, notify, locks, log)
	return e
}

// addPartner stores p and returns it re-read from the sheet.
func (e *testEnv) addPartner(t *testing.T, p *models.Partner) *models.Partner {
	t.Helper()
	ctx := context.Background()
	p.IsActive = true
	if err := e.partners.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	return e.mustPartner(t, p.Email)
}

func (e *testEnv) mustPartner(t *testing.T, email string) *models.Partner {
	t.Helper()
	p, err := e.partners.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("load partner %s: %v", email, err)
	}
	return p
}

func (e *testEnv) referrer(t *testing.T) *models.Partner {
	return e.addPartner(t, &models.Partner{
		Email:          "ada@enchiridion.test",
		FullName:       "Ada Obi",
		ReferralCode:   "ADA01",
		RegistrationIP: "10.0.0.1",
		LastIP:         "10.0.0.1",
	})
}

var errSheetsUnavailable = errors.New("sheets 503")

// faultyStore fails the next write to a table once per armed operation.
type faultyStore struct {
	store.Store
	mu         sync.Mutex
	failAppend map[string]bool
	failRange  map[string]bool
}

func newFaultyStore(inner store.Store) *faultyStore {
	return &faultyStore{Store: inner, failAppend: map[string]bool{}, failRange: map[string]bool{}}
}

func (f *faultyStore) armAppend(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAppend[table] = true
}

func (f *faultyStore) armRange(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRange[table] = true
}

func (f *faultyStore) take(m map[string]bool, table string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m[table] {
		delete(m, table)
		return true
	}
	return false
}

func (f *faultyStore) AppendRow(ctx context.Context, table string, values []any) error {
	if f.take(f.failAppend, table) {
		return errSheetsUnavailable
	}
	return f.Store.AppendRow(ctx, table, values)
}

func (f *faultyStore) UpdateRange(ctx context.Context, table, rng string, values [][]any) error {
	if f.take(f.failRange, table) {
		return errSheetsUnavailable
	}
	return f.Store.UpdateRange(ctx, table, rng, values)
}

func (f *faultyStore) BatchUpdate(ctx context.Context, table string, cells []store.CellUpdate) error {
	if f.take(f.failRange, table) {
		return errSheetsUnavailable
	}
	return f.Store.BatchUpdate(ctx, table, cells)
}

// overStore builds referral and milestone services whose writes go through st.
func (e *testEnv) overStore(st store.Store) (*ReferralService, *MilestoneService) {
	log := zap.NewNop()
	locks := store.NewKeyedMutex()
	partners := repository.NewPartnerRepository(st)
	activities := repository.NewActivityRepository(st)
	milestones := repository.NewMilestoneRepository(st)
	logs := repository.NewLogRepository(st)
	notify := NewNotificationService(e.worker, e.cfg, log)
	referrals := NewReferralService(partners, activities, milestones, repository.NewOnboardingRepository(st), logs, locks, notify, e.feed, e.cfg.Referral, log)
	tiers := NewMilestoneService(partners, activities, milestones, logs, locks, notify, e.feed, log)
	return referrals, tiers
}
