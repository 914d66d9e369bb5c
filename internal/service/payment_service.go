package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/repository"
	"enchiridion/pkg/payment"

	"go.uber.org/zap"
)

// ErrUnpaid is returned when Paystack does not report a reference as paid.
var ErrUnpaid = errors.New("transaction is not a successful payment")

// TransactionVerifier looks a payment reference up with the provider.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*payment.Transaction, error)
}

const providerPaystack = "paystack"

// PaystackEvent is the subset of a Paystack webhook body this service reads.
type PaystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // kobo
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// ReferralCode reads the referral code from the metadata, which Paystack
// sends either as an object or as an empty string.
func (e *PaystackEvent) ReferralCode() string {
	var meta map[string]any
	if len(e.Data.Metadata) == 0 || json.Unmarshal(e.Data.Metadata, &meta) != nil {
		return ""
	}
	for _, k := range []string{"referral_code", "refCode", "ref_code", "referralCode"} {
		if v, ok := meta[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// PurchaseCredit is the outbox payload of kind "purchase_credit".
type PurchaseCredit struct {
	ReferralCode string  `json:"referral_code"`
	BuyerEmail   string  `json:"buyer_email"`
	Reference    string  `json:"reference"`
	AmountNaira  float64 `json:"amount_naira"`
}

// PaymentService turns verified Paystack events into queued purchase credits.
type PaymentService struct {
	ledger   repository.WebhookLedger
	outbox   Enqueuer
	verifier TransactionVerifier
	log      *zap.Logger
}

// NewPaymentService builds the service. verifier may be nil, which skips
// reference checks on manual credits.
func NewPaymentService(ledger repository.WebhookLedger, outbox Enqueuer, verifier TransactionVerifier, log *zap.Logger) *PaymentService {
	return &PaymentService{ledger: ledger, outbox: outbox, verifier: verifier, log: log.Named("paystack")}
}

// VerifyReference confirms a manually entered reference was paid. It is a
// no-op when no verifier is configured or the reference is empty.
func (s *PaymentService) VerifyReference(ctx context.Context, reference string) error {
	reference = strings.TrimSpace(reference)
	if s.verifier == nil || reference == "" {
		return nil
	}
	tx, err := s.verifier.VerifyTransaction(ctx, reference)
	if errors.Is(err, payment.ErrTransactionNotFound) {
		return ErrUnpaid
	}
	if err != nil {
		return err
	}
	if !tx.Succeeded() {
		s.log.Warn("manual credit for unpaid reference", zap.String("reference", reference), zap.String("status", tx.Status))
		return ErrUnpaid
	}
	return nil
}

// HandleEvent returns true when the event was queued, false when it was
// ignored or already seen.
func (s *PaymentService) HandleEvent(ctx context.Context, evt *PaystackEvent) (bool, error) {
	if evt.Event != "charge.success" || !strings.EqualFold(evt.Data.Status, "success") {
		s.log.Debug("ignored event", zap.String("event", evt.Event), zap.String("status", evt.Data.Status))
		return false, nil
	}
	ref := strings.TrimSpace(evt.Data.Reference)
	if ref == "" {
		return false, ErrInvalidInput
	}
	fresh, err := s.ledger.Claim(ctx, providerPaystack, ref, evt.Event)
	if err != nil {
		return false, err
	}
	if !fresh {
		s.log.Info("duplicate webhook", zap.String("reference", ref))
		return false, nil
	}
	credit := PurchaseCredit{
		ReferralCode: evt.ReferralCode(),
		BuyerEmail:   strings.ToLower(strings.TrimSpace(evt.Data.Customer.Email)),
		Reference:    ref,
		AmountNaira:  float64(evt.Data.Amount) / 100,
	}
	if err := s.outbox.Enqueue(ctx, domain.OutboxPurchaseCredit, credit); err != nil {
		// Without the release the provider's retry would be taken for a duplicate.
		if rerr := s.ledger.Release(ctx, providerPaystack, ref); rerr != nil {
			s.log.Error("release webhook claim", zap.String("reference", ref), logging.Err(rerr))
		}
		return false, err
	}
	s.log.Info("purchase queued", zap.String("reference", ref), zap.String("code", credit.ReferralCode))
	return true, nil
}

// PurchaseCreditHandler applies queued purchase credits. Unknown referral codes
// and malformed payloads are permanent and are not retried.
func PurchaseCreditHandler(referrals *ReferralService, log *zap.Logger) OutboxHandler {
	return func(ctx context.Context, payload []byte) error {
		var pc PurchaseCredit
		if err := json.Unmarshal(payload, &pc); err != nil {
			log.Error("bad purchase payload", logging.Err(err))
			return nil
		}
		_, err := referrals.CreditPurchase(ctx, PurchaseRequest{
			ReferralCode: pc.ReferralCode,
			BuyerEmail:   pc.BuyerEmail,
			Reference:    pc.Reference,
			AmountNaira:  pc.AmountNaira,
		})
		if errors.Is(err, ErrReferrerNotFound) || errors.Is(err, ErrInvalidInput) {
			log.Warn("purchase not creditable", zap.String("reference", pc.Reference), logging.Err(err))
			return nil
		}
		return err
	}
}
