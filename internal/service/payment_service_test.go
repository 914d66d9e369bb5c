package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"enchiridion/internal/domain"
	"enchiridion/internal/repository"
	"enchiridion/pkg/payment"

	"go.uber.org/zap"
)

func chargeEvent(t *testing.T, raw string) *PaystackEvent {
	t.Helper()
	var evt PaystackEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatal(err)
	}
	return &evt
}

const chargeSuccess = `{
	"event": "charge.success",
	"data": {
		"status": "success",
		"reference": "ps_ref_1",
		"amount": 1500000,
		"customer": {"email": "Buyer@Enchiridion.test"},
		"metadata": {"referral_code": " ADA01 "}
	}
}`

func TestHandleEventQueuesOncePerReference(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	svc := NewPaymentService(repository.NewMemoryWebhookLedger(), w, nil, zap.NewNop())
	ctx := context.Background()

	queued, err := svc.HandleEvent(ctx, chargeEvent(t, chargeSuccess))
	if err != nil || !queued {
		t.Fatalf("first delivery = %v, %v", queued, err)
	}
	queued, err = svc.HandleEvent(ctx, chargeEvent(t, chargeSuccess))
	if err != nil || queued {
		t.Fatalf("replay = %v, %v; want ignored", queued, err)
	}

	m := onlyMessage(t, repo)
	if m.Kind != domain.OutboxPurchaseCredit {
		t.Errorf("kind = %s", m.Kind)
	}
	var pc PurchaseCredit
	if err := json.Unmarshal([]byte(m.Payload), &pc); err != nil {
		t.Fatal(err)
	}
	if pc.ReferralCode != "ADA01" || pc.BuyerEmail != "buyer@enchiridion.test" || pc.AmountNaira != 15000 {
		t.Errorf("payload = %+v", pc)
	}
}

func TestHandleEventIgnoresOtherEvents(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	svc := NewPaymentService(repository.NewMemoryWebhookLedger(), w, nil, zap.NewNop())
	queued, err := svc.HandleEvent(context.Background(), chargeEvent(t, `{"event":"transfer.success","data":{"reference":"x"}}`))
	if err != nil || queued {
		t.Errorf("got %v, %v", queued, err)
	}
	if n, _ := repo.CountByStatus(context.Background(), domain.OutboxPending); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestPaystackEventReferralCode(t *testing.T) {
	tests := []struct {
		name, metadata, want string
	}{
		{"object", `{"refCode":"BOLA1"}`, "BOLA1"},
		{"empty string", `""`, ""},
		{"missing", `null`, ""},
		{"custom fields only", `{"custom_fields":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := chargeEvent(t, `{"event":"charge.success","data":{"metadata":`+tt.metadata+`}}`)
			if got := evt.ReferralCode(); got != tt.want {
				t.Errorf("ReferralCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPurchaseCreditHandler(t *testing.T) {
	e := newTestEnv(t)
	e.referrer(t)
	h := PurchaseCreditHandler(e.referrals, zap.NewNop())
	ctx := context.Background()

	if err := h(ctx, []byte(`{"referral_code":"ADA01","reference":"ps_9"}`)); err != nil {
		t.Fatal(err)
	}
	if p := e.mustPartner(t, "ada@enchiridion.test"); p.Points != domain.PointsBookPurchase {
		t.Errorf("points = %v", p.Points)
	}
	// permanent failures are acknowledged so the worker does not retry them
	if err := h(ctx, []byte(`{"referral_code":"GHOST","reference":"ps_10"}`)); err != nil {
		t.Errorf("unknown code err = %v, want nil", err)
	}
	if err := h(ctx, []byte(`not json`)); err != nil {
		t.Errorf("bad payload err = %v, want nil", err)
	}
}

type stubVerifier struct {
	tx  *payment.Transaction
	err error
}

func (s stubVerifier) VerifyTransaction(context.Context, string) (*payment.Transaction, error) {
	return s.tx, s.err
}

func TestVerifyReference(t *testing.T) {
	tests := []struct {
		name     string
		verifier TransactionVerifier
		ref      string
		want     error
	}{
		{"no verifier", nil, "ps_1", nil},
		{"no reference", stubVerifier{err: errors.New("unused")}, "", nil},
		{"paid", stubVerifier{tx: &payment.Transaction{Status: "success"}}, "ps_1", nil},
		{"abandoned", stubVerifier{tx: &payment.Transaction{Status: "abandoned"}}, "ps_1", ErrUnpaid},
		{"unknown", stubVerifier{err: payment.ErrTransactionNotFound}, "ps_1", ErrUnpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewPaymentService(repository.NewMemoryWebhookLedger(), nil, tt.verifier, zap.NewNop())
			if err := svc.VerifyReference(context.Background(), tt.ref); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

type flakyEnqueuer struct {
	err   error
	inner Enqueuer
}

func (f *flakyEnqueuer) Enqueue(ctx context.Context, kind string, payload any) error {
	if f.err != nil {
		return f.err
	}
	return f.inner.Enqueue(ctx, kind, payload)
}

func TestHandleEventRetriesAfterEnqueueFailure(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	outbox := &flakyEnqueuer{err: errors.New("db down"), inner: w}
	svc := NewPaymentService(repository.NewMemoryWebhookLedger(), outbox, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.HandleEvent(ctx, chargeEvent(t, chargeSuccess)); err == nil {
		t.Fatal("expected the enqueue failure to surface")
	}

	outbox.err = nil
	queued, err := svc.HandleEvent(ctx, chargeEvent(t, chargeSuccess))
	if err != nil || !queued {
		t.Fatalf("provider retry = %v, %v; want queued", queued, err)
	}
	if m := onlyMessage(t, repo); m.Kind != domain.OutboxPurchaseCredit {
		t.Errorf("kind = %s", m.Kind)
	}
}
