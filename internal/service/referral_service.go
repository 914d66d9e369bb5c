package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"enchiridion/config"
	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/metrics"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"
	"enchiridion/internal/store"

	"go.uber.org/zap"
)

var (
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrPartnerNotFound  = errors.New("partner not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// FeedPublisher pushes live events to connected feed clients.
type FeedPublisher interface {
	BroadcastAll(payload interface{})
}

// FeedEvent is what the live impact feed receives.
type FeedEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type CreditResult struct {
	Success       bool    `json:"success"`
	Status        string  `json:"status"`
	PointsAwarded float64 `json:"points_awarded"`
	NewPoints     float64 `json:"new_points"`
	NewRevenue    float64 `json:"new_revenue"`
	ReferralCode  string  `json:"referral_code,omitempty"`
}

// CreditRequest describes one referee event credited to the owner of ReferralCode.
type CreditRequest struct {
	ReferralCode string
	// Referee identifies who or what triggered the credit; with the rule it forms the idempotency key.
	Referee      string
	RefereeEmail string
	RefereeIP    string
	Details      string
}

type creditRule struct {
	activity       string
	milestone      string
	points         float64
	countsReferral bool
	checkFraud     bool
	notify         bool
}

// ReferralService applies the referral credit rules.
type ReferralService struct {
	partners   *repository.PartnerRepository
	activities *repository.ActivityRepository
	milestones *repository.MilestoneRepository
	onboarding *repository.OnboardingRepository
	logs       *repository.LogRepository
	locks      *store.KeyedMutex
	notify     *NotificationService
	feed       FeedPublisher
	cfg        config.ReferralConfig
	log        *zap.Logger
}

func NewReferralService(
	partners *repository.PartnerRepository,
	activities *repository.ActivityRepository,
	milestones *repository.MilestoneRepository,
	onboarding *repository.OnboardingRepository,
	logs *repository.LogRepository,
	locks *store.KeyedMutex,
	notify *NotificationService,
	feed FeedPublisher,
	cfg config.ReferralConfig,
	log *zap.Logger,
) *ReferralService {
	return &ReferralService{
		partners:   partners,
		activities: activities,
		milestones: milestones,
		onboarding: onboarding,
		logs:       logs,
		locks:      locks,
		notify:     notify,
		feed:       feed,
		cfg:        cfg,
		log:        log.Named("referral"),
	}
}

// apply runs one credit rule: resolve the referrer, check for self-referral,
// record the idempotency key, then write the balance and the activity row.
func (s *ReferralService) apply(ctx context.Context, rule creditRule, req CreditRequest) (*CreditResult, error) {
	if strings.TrimSpace(req.Referee) == "" {
		return nil, ErrInvalidInput
	}
	referrer, err := s.partners.GetByReferralCode(ctx, req.ReferralCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReferrerNotFound
	}
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("rule", rule.activity), zap.String("code", referrer.ReferralCode))

	if rule.checkFraud && s.isSelfReferral(referrer, req) {
		log.Warn("self referral blocked", zap.String("referee", req.Referee), zap.String("ip", req.RefereeIP))
		metrics.CreditsTotal.WithLabelValues(rule.activity, domain.StatusSelfReferralBlocked).Inc()
		return &CreditResult{Status: domain.StatusSelfReferralBlocked, ReferralCode: referrer.ReferralCode}, nil
	}

	key := repository.MilestoneKey(req.Referee, rule.milestone)
	unlockKey := s.locks.Lock("milestone:" + key)
	defer unlockKey()
	exists, err := s.milestones.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		metrics.CreditsTotal.WithLabelValues(rule.activity, domain.StatusAlreadyCredited).Inc()
		return &CreditResult{
			Success:      true,
			Status:       domain.StatusAlreadyCredited,
			NewPoints:    referrer.Points,
			NewRevenue:   referrer.Revenue,
			ReferralCode: referrer.ReferralCode,
		}, nil
	}

	unlock := s.locks.Lock(partnerLock(referrer.Email))
	defer unlock()
	// Re-read under the lock so concurrent credits to the same partner see each other.
	referrer, err = s.partners.GetByEmail(ctx, referrer.Email)
	if err != nil {
		return nil, err
	}

	// The milestone row is the idempotency record, so it goes first: a failure
	// after it can leave a credit unpaid but never pays one twice.
	now := time.Now().UTC()
	if err := s.milestones.Append(ctx, &models.Milestone{
		Timestamp:     now,
		ReferrerEmail: referrer.Email,
		Referee:       req.Referee,
		Type:          rule.milestone,
		Points:        rule.points,
		UniqueKey:     key,
	}); err != nil {
		return nil, err
	}
	if rule.points != 0 {
		if err := s.partners.SetBalance(ctx, referrer, referrer.Points+rule.points); err != nil {
			log.Error("balance write failed after milestone was recorded",
				zap.String("key", key), zap.Float64("points", rule.points), logging.Err(err))
			metrics.CreditsTotal.WithLabelValues(rule.activity, domain.StatusBalanceFailed).Inc()
			return nil, err
		}
	}
	if rule.countsReferral {
		referrer.TotalReferrals++
		if err := s.partners.Update(ctx, referrer.Email, repository.FieldChange{Col: repository.ColTotalReferrals, Value: referrer.TotalReferrals}); err != nil {
			log.Error("referral count not incremented", zap.String("key", key), logging.Err(err))
		}
	}
	if err := s.activities.Append(ctx, &models.Activity{
		Timestamp:    now,
		ReferralCode: referrer.ReferralCode,
		Type:         rule.activity,
		Points:       rule.points,
		Details:      req.Details,
	}); err != nil {
		log.Error("activity row missing for credit", zap.String("key", key), logging.Err(err))
	}

	metrics.CreditsTotal.WithLabelValues(rule.activity, domain.StatusCredited).Inc()
	metrics.PointsAwarded.WithLabelValues(rule.activity).Add(rule.points)
	log.Info("credited", zap.Float64("points", rule.points), zap.Float64("balance", referrer.Points))

	if rule.notify && rule.points > 0 {
		s.notify.ReferralCredited(ctx, referrer, strings.ReplaceAll(rule.activity, "_", " "), rule.points)
	}
	s.publish(rule.milestone, PrivacyName(referrer.FullName)+" earned a "+strings.ReplaceAll(rule.milestone, "_", " ")+" credit")

	return &CreditResult{
		Success:       true,
		Status:        domain.StatusCredited,
		PointsAwarded: rule.points,
		NewPoints:     referrer.Points,
		NewRevenue:    referrer.Revenue,
		ReferralCode:  referrer.ReferralCode,
	}, nil
}

func (s *ReferralService) isSelfReferral(referrer *models.Partner, req CreditRequest) bool {
	if req.RefereeEmail != "" && strings.EqualFold(strings.TrimSpace(referrer.Email), strings.TrimSpace(req.RefereeEmail)) {
		return true
	}
	ip := strings.TrimSpace(req.RefereeIP)
	if !s.cfg.BlockSharedIP || ip == "" {
		return false
	}
	return ip == referrer.RegistrationIP || ip == referrer.LastIP
}

func (s *ReferralService) publish(kind, message string) {
	if s.feed == nil {
		return
	}
	s.feed.BroadcastAll(FeedEvent{Type: kind, Message: message, Timestamp: time.Now().UTC()})
}

// RegisterReferral records a pending registration for the referee. Points
// follow on verification.
func (s *ReferralService) RegisterReferral(ctx context.Context, referee *models.Partner) (*CreditResult, error) {
	res, err := s.apply(ctx, creditRule{
		activity:   domain.ActivityRegistration,
		milestone:  domain.MilestoneRegistration,
		points:     domain.PointsRegistration,
		checkFraud: true,
	}, CreditRequest{
		ReferralCode: referee.ReferredBy,
		Referee:      referee.Email,
		RefereeEmail: referee.Email,
		RefereeIP:    referee.RegistrationIP,
		Details:      "Registration pending verification: " + referee.Email,
	})
	if err != nil {
		return nil, err
	}
	if res.Status == domain.StatusCredited {
		res.Status = domain.StatusPendingVerification
	}
	return res, nil
}

// CreditVerification credits the referrer of a partner who just verified.
// It returns nil when the partner was not referred.
func (s *ReferralService) CreditVerification(ctx context.Context, referee *models.Partner) (*CreditResult, error) {
	if strings.TrimSpace(referee.ReferredBy) == "" {
		return nil, nil
	}
	return s.apply(ctx, creditRule{
		activity:       domain.ActivityVerification,
		milestone:      domain.MilestoneVerification,
		points:         domain.PointsVerification,
		countsReferral: true,
		checkFraud:     true,
		notify:         true,
	}, CreditRequest{
		ReferralCode: referee.ReferredBy,
		Referee:      referee.Email,
		RefereeEmail: referee.Email,
		RefereeIP:    referee.RegistrationIP,
		Details:      "Referee verified: " + referee.Email,
	})
}

// RecordVisit credits a page visit once per connection IP and referral code.
// The visitor id only stands in when no IP is known.
func (s *ReferralService) RecordVisit(ctx context.Context, code, visitor, ip string) (*CreditResult, error) {
	source := strings.TrimSpace(ip)
	if source == "" {
		source = strings.TrimSpace(visitor)
	}
	if source == "" {
		return nil, ErrInvalidInput
	}
	details := "Page visit"
	if visitor != "" {
		details += " by " + visitor
	}
	return s.apply(ctx, creditRule{
		activity:   domain.ActivityVisit,
		milestone:  domain.MilestoneVisit,
		points:     s.cfg.VisitPoints,
		checkFraud: true,
	}, CreditRequest{
		ReferralCode: code,
		Referee:      strings.ToLower(strings.TrimSpace(code)) + ":" + source,
		RefereeIP:    ip,
		Details:      details,
	})
}

// RecordShare credits a social share once per code, platform and day.
// The partner shares their own link, so the IP check does not apply.
func (s *ReferralService) RecordShare(ctx context.Context, code, platform string) (*CreditResult, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "unknown"
	}
	day := time.Now().UTC().Format("2006-01-02")
	return s.apply(ctx, creditRule{
		activity:  domain.ActivityShare,
		milestone: domain.MilestoneShare,
		points:    s.cfg.SharePoints,
	}, CreditRequest{
		ReferralCode: code,
		Referee:      strings.ToLower(strings.TrimSpace(code)) + ":" + platform + ":" + day,
		Details:      "Shared on " + platform,
	})
}

type PurchaseRequest struct {
	ReferralCode string
	BuyerEmail   string
	Reference    string
	IP           string
	AmountNaira  float64
}

type PurchaseResult struct {
	Success  bool          `json:"success"`
	Referrer *CreditResult `json:"referrer,omitempty"`
	Cashback *CreditResult `json:"cashback,omitempty"`
}

// CreditPurchase credits the referrer of a book purchase and the buyer's own
// cash-back when the buyer is a partner. Without an explicit code the buyer's
// referred-by code is used.
func (s *ReferralService) CreditPurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	referee := strings.TrimSpace(req.BuyerEmail)
	if referee == "" {
		referee = strings.TrimSpace(req.Reference)
	}
	if referee == "" {
		return nil, ErrInvalidInput
	}

	var buyer *models.Partner
	if req.BuyerEmail != "" {
		p, err := s.partners.GetByEmail(ctx, req.BuyerEmail)
		switch {
		case err == nil:
			buyer = p
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}
	code := strings.TrimSpace(req.ReferralCode)
	if code == "" && buyer != nil {
		code = buyer.ReferredBy
	}

	res := &PurchaseResult{Success: true}
	details := "Book purchase"
	if req.Reference != "" {
		details += " ref " + req.Reference
	}
	if code != "" {
		credit, err := s.apply(ctx, creditRule{
			activity:   domain.ActivityBookPurchase,
			milestone:  domain.MilestoneBookPurchase,
			points:     domain.PointsBookPurchase,
			checkFraud: true,
			notify:     true,
		}, CreditRequest{
			ReferralCode: code,
			Referee:      referee,
			RefereeEmail: req.BuyerEmail,
			RefereeIP:    req.IP,
			Details:      details,
		})
		if err != nil {
			return nil, err
		}
		res.Referrer = credit
	}

	if buyer != nil {
		cashbackRef := req.Reference
		if cashbackRef == "" {
			cashbackRef = buyer.Email
		}
		credit, err := s.apply(ctx, creditRule{
			activity:  domain.ActivityPurchaseCashback,
			milestone: domain.MilestonePurchaseCashback,
			points:    domain.PointsPurchaseCashback,
			notify:    true,
		}, CreditRequest{
			ReferralCode: buyer.ReferralCode,
			Referee:      cashbackRef,
			Details:      "Cash-back on own purchase",
		})
		if err != nil {
			return nil, err
		}
		res.Cashback = credit
		s.MarkOnboarding(ctx, buyer.Email, func(o *models.Onboarding) { o.HasPurchasedBook = true })
	}
	return res, nil
}

// DistributorLead stores the lead and credits the referrer once per phone number.
func (s *ReferralService) DistributorLead(ctx context.Context, lead *models.DistributorLead, ip string) (*CreditResult, error) {
	lead.Timestamp = time.Now().UTC()
	if err := s.logs.AppendDistributorLead(ctx, lead); err != nil {
		return nil, err
	}
	if lead.SubmittedBy != "" {
		s.MarkOnboarding(ctx, lead.SubmittedBy, func(o *models.Onboarding) { o.IsDistributor = true })
	}
	if strings.TrimSpace(lead.ReferralCode) == "" {
		return &CreditResult{Success: true, Status: "recorded"}, nil
	}
	res, err := s.apply(ctx, creditRule{
		activity:   domain.ActivityDistributorLead,
		milestone:  domain.MilestoneDistributorLead,
		points:     domain.PointsDistributorLead,
		checkFraud: true,
		notify:     true,
	}, CreditRequest{
		ReferralCode: lead.ReferralCode,
		Referee:      digitsOnly(lead.Phone),
		RefereeEmail: lead.SubmittedBy,
		RefereeIP:    ip,
		Details:      "Distributor lead: " + lead.Name,
	})
	if errors.Is(err, ErrReferrerNotFound) {
		s.log.Warn("distributor lead with unknown code", zap.String("code", lead.ReferralCode))
		return &CreditResult{Success: true, Status: "recorded"}, nil
	}
	return res, err
}

// LogActivity appends a zero-point entry to the activity log. An empty type is a plain note.
func (s *ReferralService) LogActivity(ctx context.Context, code, activityType, details string) error {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(details) == "" {
		return ErrInvalidInput
	}
	if activityType = strings.TrimSpace(activityType); activityType == "" {
		activityType = domain.ActivityNote
	}
	return s.activities.Append(ctx, &models.Activity{
		Timestamp:    time.Now().UTC(),
		ReferralCode: strings.TrimSpace(code),
		Type:         activityType,
		Details:      details,
	})
}

func (s *ReferralService) CaptureLead(ctx context.Context, email, code, source, details string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ErrInvalidInput
	}
	return s.logs.AppendLead(ctx, &models.Lead{
		Timestamp:    time.Now().UTC(),
		Email:        email,
		ReferralCode: strings.TrimSpace(code),
		Source:       source,
		Details:      details,
	})
}

// TrackVisit records a landing session for analytics without crediting anyone.
func (s *ReferralService) TrackVisit(ctx context.Context, code, ip, userAgent string) error {
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	return s.logs.AppendShare(ctx, &models.ShareTrack{
		Timestamp:    time.Now().UTC(),
		ReferralCode: strings.TrimSpace(code),
		Event:        "visit",
		IP:           ip,
		UserAgent:    userAgent,
	})
}

type Stats struct {
	*models.Partner
	Rank Rank `json:"legacy_rank"`
}

func (s *ReferralService) Stats(ctx context.Context, email string) (*Stats, error) {
	p, err := s.partners.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	list, err := s.milestones.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Partner: p, Rank: LegacyRank(list, p.Email)}, nil
}

// Progress returns the onboarding checklist, falling back to the partner row
// for users who have no onboarding row yet.
func (s *ReferralService) Progress(ctx context.Context, email string) (*models.Onboarding, error) {
	ob, err := s.onboarding.Get(ctx, email)
	if err == nil {
		return ob, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	p, err := s.partners.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Onboarding{Email: email}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Onboarding{Email: p.Email, IsPartner: true, IsVerified: p.IsVerified}, nil
}

type PayoutDetails struct {
	BankName      string `json:"bank_name" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
}

func (s *ReferralService) UpdatePayout(ctx context.Context, email string, d PayoutDetails) error {
	d.AccountNumber = strings.TrimSpace(d.AccountNumber)
	if d.AccountNumber == "" || digitsOnly(d.AccountNumber) != d.AccountNumber {
		return ErrInvalidInput
	}
	unlock := s.locks.Lock(partnerLock(email))
	defer unlock()
	err := s.partners.Update(ctx, email,
		repository.FieldChange{Col: repository.ColBankName, Value: strings.TrimSpace(d.BankName)},
		repository.FieldChange{Col: repository.ColAccountName, Value: strings.TrimSpace(d.AccountName)},
		repository.FieldChange{Col: repository.ColAccountNumber, Value: d.AccountNumber},
	)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPartnerNotFound
	}
	return err
}

// MarkOnboarding updates the checklist row for email. Failures are only logged.
func (s *ReferralService) MarkOnboarding(ctx context.Context, email string, mutate func(*models.Onboarding)) {
	unlock := s.locks.Lock("onboarding:" + strings.ToLower(email))
	defer unlock()
	if _, err := s.onboarding.Upsert(ctx, email, mutate); err != nil {
		s.log.Warn("update onboarding", zap.String("email", email), logging.Err(err))
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
