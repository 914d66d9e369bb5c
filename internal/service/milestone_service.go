package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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
	ErrInvalidTier = errors.New("invalid milestone tier")
	ErrNotEligible = errors.New("not enough referrals for this tier")
)

type TierResult struct {
	Success        bool    `json:"success"`
	AlreadyApplied bool    `json:"already_applied"`
	Tier           int     `json:"tier"`
	Bonus          float64 `json:"bonus"`
	NewPoints      float64 `json:"new_points"`
	NewRevenue     float64 `json:"new_revenue"`
}

// Rank is the legacy title derived from book-purchase referrals.
type Rank struct {
	Title      string     `json:"title"`
	Purchases  int        `json:"purchases"`
	AttainedAt *time.Time `json:"attained_at,omitempty"`
	NextTitle  string     `json:"next_title,omitempty"`
	ToNext     int        `json:"to_next,omitempty"`
}

// LegacyRank computes the rank of email from the milestone list. The
// attainment date is the timestamp of the milestone that crossed the threshold.
func LegacyRank(list []models.Milestone, email string) Rank {
	purchases := repository.FilterMilestones(list, email, domain.MilestoneBookPurchase)
	n := len(purchases)
	r := Rank{Title: domain.RankSeeker, Purchases: n}
	at := func(threshold int) *time.Time {
		t := purchases[threshold-1].Timestamp
		return &t
	}
	switch {
	case n >= domain.MasterThreshold:
		r.Title = domain.RankMaster
		r.AttainedAt = at(domain.MasterThreshold)
	case n >= domain.SageThreshold:
		r.Title = domain.RankSage
		r.AttainedAt = at(domain.SageThreshold)
		r.NextTitle = domain.RankMaster
		r.ToNext = domain.MasterThreshold - n
	default:
		r.NextTitle = domain.RankSage
		r.ToNext = domain.SageThreshold - n
	}
	return r
}

type MasterEntry struct {
	Name       string     `json:"name"`
	Purchases  int        `json:"purchases"`
	AttainedAt *time.Time `json:"attained_at"`
}

type RecentMilestone struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Points    float64   `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}

type MilestoneService struct {
	partners   *repository.PartnerRepository
	activities *repository.ActivityRepository
	milestones *repository.MilestoneRepository
	logs       *repository.LogRepository
	locks      *store.KeyedMutex
	notify     *NotificationService
	feed       FeedPublisher
	log        *zap.Logger
}

func NewMilestoneService(
	partners *repository.PartnerRepository,
	activities *repository.ActivityRepository,
	milestones *repository.MilestoneRepository,
	logs *repository.LogRepository,
	locks *store.KeyedMutex,
	notify *NotificationService,
	feed FeedPublisher,
	log *zap.Logger,
) *MilestoneService {
	return &MilestoneService{
		partners:   partners,
		activities: activities,
		milestones: milestones,
		logs:       logs,
		locks:      locks,
		notify:     notify,
		feed:       feed,
		log:        log.Named("milestone"),
	}
}

// ApplyTierBonus grants the flat bonus of a referral tier once. A grant is
// recognised by the partner's claimed flag or by an earlier audit entry.
func (s *MilestoneService) ApplyTierBonus(ctx context.Context, code string, threshold int, actor string) (*TierResult, error) {
	tier, ok := domain.TierFor(threshold)
	if !ok {
		return nil, ErrInvalidTier
	}
	p, err := s.partners.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}

	unlockKey := s.locks.Lock(fmt.Sprintf("tier:%s:%d", strings.ToLower(p.Email), threshold))
	defer unlockKey()
	unlock := s.locks.Lock(partnerLock(p.Email))
	defer unlock()
	if p, err = s.partners.GetByEmail(ctx, p.Email); err != nil {
		return nil, err
	}

	if p.TotalReferrals < tier.Threshold {
		return nil, ErrNotEligible
	}
	res := &TierResult{Tier: tier.Threshold, Bonus: tier.Bonus}
	granted := p.ClaimedFlag(tier.Threshold) == domain.ClaimedFlag
	if !granted {
		if granted, err = s.logs.HasGrant(ctx, p.Email, tier.Label); err != nil {
			return nil, err
		}
	}
	if granted {
		res.Success, res.AlreadyApplied = true, true
		res.NewPoints, res.NewRevenue = p.Points, p.Revenue
		return res, nil
	}

	// The claimed flag marks the grant before the balance moves, so a failed
	// write cannot be followed by a second payment.
	flag := repository.ColMilestone1
	if tier.Threshold >= 100 {
		flag = repository.ColMilestone2
	}
	if err := s.partners.Update(ctx, p.Email, repository.FieldChange{Col: flag, Value: domain.ClaimedFlag}); err != nil {
		return nil, err
	}
	if err := s.partners.SetBalance(ctx, p, p.Points+currency.PointsFor(tier.Bonus)); err != nil {
		s.log.Error("balance write failed after tier was claimed",
			zap.String("email", p.Email), zap.Int("tier", tier.Threshold), logging.Err(err))
		metrics.CreditsTotal.WithLabelValues(domain.ActivityTierBonus, domain.StatusBalanceFailed).Inc()
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.logs.AppendAudit(ctx, &models.AuditEntry{
		Timestamp: now,
		Actor:     actor,
		Action:    "tier_bonus",
		Target:    p.Email,
		Details:   fmt.Sprintf("Granted %s to %s (%s)", tier.Label, p.Email, currency.Naira(tier.Bonus)),
	}); err != nil {
		s.log.Error("audit row missing for tier grant", zap.String("email", p.Email), logging.Err(err))
	}
	if err := s.activities.Append(ctx, &models.Activity{
		Timestamp:    now,
		ReferralCode: p.ReferralCode,
		Type:         domain.ActivityTierBonus,
		Points:       currency.PointsFor(tier.Bonus),
		Details:      tier.Label,
	}); err != nil {
		s.log.Error("activity row missing for tier grant", zap.String("email", p.Email), logging.Err(err))
	}

	metrics.CreditsTotal.WithLabelValues(domain.ActivityTierBonus, domain.StatusCredited).Inc()
	metrics.PointsAwarded.WithLabelValues(domain.ActivityTierBonus).Add(currency.PointsFor(tier.Bonus))
	s.log.Info("tier bonus granted", zap.String("email", p.Email), zap.Int("tier", tier.Threshold))
	s.notify.TierUnlocked(ctx, p, tier)
	if s.feed != nil {
		s.feed.BroadcastAll(FeedEvent{
			Type:      "tier_bonus",
			Message:   fmt.Sprintf("%s reached %d referrals", PrivacyName(p.FullName), tier.Threshold),
			Timestamp: now,
		})
	}

	res.Success = true
	res.NewPoints, res.NewRevenue = p.Points, p.Revenue
	return res, nil
}

// Masters lists partners holding the Master rank, earliest first.
func (s *MilestoneService) Masters(ctx context.Context) ([]MasterEntry, error) {
	partners, err := s.partners.List(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.milestones.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []MasterEntry{}
	for _, p := range partners {
		r := LegacyRank(list, p.Email)
		if r.Title != domain.RankMaster {
			continue
		}
		out = append(out, MasterEntry{Name: PrivacyName(p.FullName), Purchases: r.Purchases, AttainedAt: r.AttainedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttainedAt.Before(*out[j].AttainedAt) })
	return out, nil
}

// RecentMilestones returns the latest credited milestones with anonymized names.
func (s *MilestoneService) RecentMilestones(ctx context.Context, limit int) ([]RecentMilestone, error) {
	partners, err := s.partners.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(partners))
	for _, p := range partners {
		names[strings.ToLower(p.Email)] = p.FullName
	}
	list, err := s.milestones.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
	out := []RecentMilestone{}
	for _, m := range list {
		if m.Points <= 0 {
			continue
		}
		out = append(out, RecentMilestone{
			Name:      PrivacyName(names[strings.ToLower(m.ReferrerEmail)]),
			Type:      m.Type,
			Points:    m.Points,
			Timestamp: m.Timestamp,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
