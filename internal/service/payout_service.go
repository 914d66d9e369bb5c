package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/metrics"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"
	"enchiridion/internal/store"
	"enchiridion/pkg/currency"

	"go.uber.org/zap"
)

var (
	ErrNoBalance       = errors.New("partner has no pending balance")
	ErrNothingToRevert = errors.New("no payout to revert")
)

type SettlementResult struct {
	Success             bool    `json:"success"`
	Email               string  `json:"email"`
	ReferralCode        string  `json:"referral_code"`
	AmountPaid          float64 `json:"amount_paid"`
	NewLifetime         float64 `json:"new_lifetime"`
	ActivitiesCompleted int     `json:"activities_completed"`
}

type RevertResult struct {
	Success         bool    `json:"success"`
	Email           string  `json:"email"`
	RestoredRevenue float64 `json:"restored_revenue"`
	RestoredPoints  float64 `json:"restored_points"`
	NewLifetime     float64 `json:"new_lifetime"`
	ProtectedFloor  float64 `json:"protected_floor"`
}

// PayoutService settles partner balances and reverts settlements.
type PayoutService struct {
	partners   *repository.PartnerRepository
	activities *repository.ActivityRepository
	logs       *repository.LogRepository
	locks      *store.KeyedMutex
	notify     *NotificationService
	log        *zap.Logger
}

func NewPayoutService(
	partners *repository.PartnerRepository,
	activities *repository.ActivityRepository,
	logs *repository.LogRepository,
	locks *store.KeyedMutex,
	notify *NotificationService,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		partners:   partners,
		activities: activities,
		logs:       logs,
		locks:      locks,
		notify:     notify,
		log:        log.Named("payout"),
	}
}

// lockPartner resolves the partner by email, or by code when email is empty,
// locks it and re-reads the row under the lock.
func (s *PayoutService) lockPartner(ctx context.Context, email, code string) (*models.Partner, func(), error) {
	var (
		p   *models.Partner
		err error
	)
	if strings.TrimSpace(email) != "" {
		p, err = s.partners.GetByEmail(ctx, email)
	} else {
		p, err = s.partners.GetByReferralCode(ctx, code)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(partnerLock(p.Email))
	if p, err = s.partners.GetByEmail(ctx, p.Email); err != nil {
		unlock()
		return nil, nil, err
	}
	return p, unlock, nil
}

// MarkAsPaid moves the current revenue into lifetime earnings, zeroes the
// balance, remembers the amount for a later revert and completes the
// partner's pending activity rows.
func (s *PayoutService) MarkAsPaid(ctx context.Context, email, code, actor string) (*SettlementResult, error) {
	p, unlock, err := s.lockPartner(ctx, email, code)
	if err != nil {
		return nil, err
	}
	defer unlock()

	amount := currency.Round2(p.Revenue)
	if amount <= 0 {
		return nil, ErrNoBalance
	}
	p.LifetimeEarnings = currency.Round2(p.LifetimeEarnings + amount)
	p.Points, p.Revenue = 0, 0
	p.LastPayout = amount
	p.PayoutStatus = domain.PayoutCompleted
	if err := s.partners.SaveSettlement(ctx, p); err != nil {
		return nil, err
	}

	completed, err := s.activities.MarkCompleted(ctx, p.ReferralCode)
	if err != nil {
		// The balance is already settled; the activity rows can be fixed by re-running.
		s.log.Error("complete activity rows", zap.String("code", p.ReferralCode), logging.Err(err))
	}
	s.logSettlement(ctx, p, domain.ActivityPayout, -amount/currency.NairaPerPoint, domain.PayoutCompleted,
		"Payout of "+currency.Naira(amount))
	s.audit(ctx, actor, "mark_as_paid", p.Email, fmt.Sprintf("Paid %s, lifetime now %s",
		currency.Naira(amount), currency.Naira(p.LifetimeEarnings)))

	metrics.SettlementsTotal.WithLabelValues("paid").Inc()
	s.log.Info("payout settled", zap.String("email", p.Email), zap.Float64("amount", amount))
	s.notify.PayoutCompleted(ctx, p, amount)

	return &SettlementResult{
		Success:             true,
		Email:               p.Email,
		ReferralCode:        p.ReferralCode,
		AmountPaid:          amount,
		NewLifetime:         p.LifetimeEarnings,
		ActivitiesCompleted: completed,
	}, nil
}

// ProtectedFloor is the part of lifetime earnings owed to claimed tier bonuses.
func ProtectedFloor(p *models.Partner) float64 {
	var floor float64
	for _, t := range domain.Tiers {
		if p.ClaimedFlag(t.Threshold) == domain.ClaimedFlag {
			floor += t.Bonus
		}
	}
	return floor
}

// Revert undoes the last settlement without taking lifetime earnings below
// the protected floor, and restores only what was actually removed.
func (s *PayoutService) Revert(ctx context.Context, email, code, actor string) (*RevertResult, error) {
	p, unlock, err := s.lockPartner(ctx, email, code)
	if err != nil {
		return nil, err
	}
	defer unlock()

	amount := p.LastPayout
	if amount <= 0 {
		amount = p.LifetimeEarnings
		s.log.Warn("no last payout recorded, reverting against lifetime earnings",
			zap.String("email", p.Email), zap.Float64("lifetime", amount))
	}
	if amount <= 0 {
		return nil, ErrNothingToRevert
	}

	floor := ProtectedFloor(p)
	newLifetime := currency.Round2(max(floor, p.LifetimeEarnings-amount))
	if newLifetime > p.LifetimeEarnings {
		newLifetime = p.LifetimeEarnings
	}
	delta := currency.Round2(p.LifetimeEarnings - newLifetime)

	p.LifetimeEarnings = newLifetime
	p.Points = currency.Round2(p.Points + delta/currency.NairaPerPoint)
	p.Revenue = currency.RevenueFor(p.Points)
	p.PayoutStatus = domain.PayoutPending
	p.LastPayout = 0
	if err := s.partners.SaveSettlement(ctx, p); err != nil {
		return nil, err
	}
	s.logSettlement(ctx, p, domain.ActivityRevert, delta/currency.NairaPerPoint, domain.PayoutPending,
		"Reverted payout, restored "+currency.Naira(delta))
	s.audit(ctx, actor, "revert_payout", p.Email, fmt.Sprintf("Restored %s, floor %s, lifetime now %s",
		currency.Naira(delta), currency.Naira(floor), currency.Naira(newLifetime)))

	metrics.SettlementsTotal.WithLabelValues("reverted").Inc()
	s.log.Info("payout reverted", zap.String("email", p.Email), zap.Float64("restored", delta))

	return &RevertResult{
		Success:         true,
		Email:           p.Email,
		RestoredRevenue: delta,
		RestoredPoints:  currency.Round2(delta / currency.NairaPerPoint),
		NewLifetime:     newLifetime,
		ProtectedFloor:  floor,
	}, nil
}

// logSettlement records the balance movement in the activity log. Failures
// are only logged since the settlement itself is already saved.
func (s *PayoutService) logSettlement(ctx context.Context, p *models.Partner, kind string, points float64, status, details string) {
	err := s.activities.Append(ctx, &models.Activity{
		Timestamp:    time.Now().UTC(),
		ReferralCode: p.ReferralCode,
		Type:         kind,
		Points:       currency.Round2(points),
		Details:      details,
		PayoutStatus: status,
	})
	if err != nil {
		s.log.Error("append settlement activity", zap.String("email", p.Email), logging.Err(err))
	}
}

func (s *PayoutService) audit(ctx context.Context, actor, action, target, details string) {
	err := s.logs.AppendAudit(ctx, &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Details:   details,
	})
	if err != nil {
		s.log.Error("append audit entry", zap.String("action", action), logging.Err(err))
	}
}
