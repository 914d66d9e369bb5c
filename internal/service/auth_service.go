package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"enchiridion/config"
	"enchiridion/internal/auth"
	"enchiridion/internal/logging"
	"enchiridion/internal/models"
	"enchiridion/internal/repository"
	"enchiridion/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists     = errors.New("email already registered")
	ErrCodeTaken       = errors.New("referral code already taken")
	ErrInvalidCreds    = errors.New("invalid email or password")
	ErrInactive        = errors.New("account is inactive")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrAlreadyVerified = errors.New("account already verified")
)

const minPasswordLength = 8

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

type RegisterInput struct {
	Email        string
	Password     string
	FullName     string
	ReferralCode string
	ReferredBy   string
	IP           string
	State        string
	Country      string
	Profession   string
	Phone        string
	Institution  string
}

type AuthService struct {
	cfg       *config.Config
	partners  *repository.PartnerRepository
	referrals *ReferralService
	notify    *NotificationService
	locks     *store.KeyedMutex
	log       *zap.Logger
}

func NewAuthService(
	cfg *config.Config,
	partners *repository.PartnerRepository,
	referrals *ReferralService,
	notify *NotificationService,
	locks *store.KeyedMutex,
	log *zap.Logger,
) *AuthService {
	return &AuthService{cfg: cfg, partners: partners, referrals: referrals, notify: notify, locks: locks, log: log.Named("auth")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Partner, error) {
	email := normalizeEmail(in.Email)
	if !strings.Contains(email, "@") || strings.TrimSpace(in.FullName) == "" {
		return nil, ErrInvalidInput
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	unlock := s.locks.Lock("register:" + email)
	defer unlock()

	_, err := s.partners.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	code, err := s.chooseCode(ctx, in.ReferralCode, in.FullName)
	if err != nil {
		return nil, err
	}
	// Sign-ups under different emails can ask for the same code; the check
	// is repeated under the code's lock and held until the row is written.
	unlockCode := s.locks.Lock("code:" + strings.ToLower(code))
	defer unlockCode()
	if _, err := s.partners.GetByReferralCode(ctx, code); err == nil {
		return nil, ErrCodeTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	referredBy := strings.TrimSpace(in.ReferredBy)
	if referredBy != "" {
		if _, err := s.partners.GetByReferralCode(ctx, referredBy); err != nil {
			s.log.Info("ignoring unknown referred_by code", zap.String("code", referredBy))
			referredBy = ""
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	p := &models.Partner{
		Email:          email,
		HashedPassword: string(hash),
		FullName:       strings.TrimSpace(in.FullName),
		ReferralCode:   code,
		ReferredBy:     referredBy,
		RegistrationIP: in.IP,
		LastIP:         in.IP,
		IsActive:       true,
		State:          in.State,
		Country:        in.Country,
		Profession:     in.Profession,
		Phone:          in.Phone,
		Institution:    in.Institution,
	}
	if err := s.partners.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("partner registered", zap.String("email", email), zap.String("code", code))

	s.referrals.MarkOnboarding(ctx, email, func(o *models.Onboarding) { o.IsPartner = true })
	if referredBy != "" {
		if _, err := s.referrals.RegisterReferral(ctx, p); err != nil {
			s.log.Error("record registration referral", zap.String("email", email), logging.Err(err))
		}
	}
	s.notify.Welcome(ctx, p)
	s.sendVerification(ctx, p)
	return p, nil
}

// chooseCode validates the requested code or generates one from the name.
func (s *AuthService) chooseCode(ctx context.Context, requested, name string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if !codePattern.MatchString(requested) {
			return "", ErrInvalidInput
		}
		if _, err := s.partners.GetByReferralCode(ctx, requested); err == nil {
			return "", ErrCodeTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		return requested, nil
	}
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, strings.ToUpper(name))
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	if prefix == "" {
		prefix = "ENC"
	}
	for i := 0; i < 5; i++ {
		code := prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
		if _, err := s.partners.GetByReferralCode(ctx, code); errors.Is(err, repository.ErrNotFound) {
			return code, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", ErrCodeTaken
}

// Login checks the password and returns a bearer token. The login IP is
// stored for the shared-IP fraud check.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*models.Partner, string, error) {
	p, err := s.partners.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrInvalidCreds
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	if !p.IsActive {
		return nil, "", ErrInactive
	}
	token, err := auth.GenerateAccessToken(&s.cfg.JWT, p.ID, p.Email, p.IsSuperuser)
	if err != nil {
		return nil, "", err
	}
	if ip != "" && ip != p.LastIP {
		if err := s.partners.Update(ctx, p.Email, repository.FieldChange{Col: repository.ColLastIP, Value: ip}); err != nil {
			s.log.Warn("record login ip", zap.String("email", p.Email), logging.Err(err))
		}
	}
	return p, token, nil
}

func (s *AuthService) Me(ctx context.Context, partnerID string) (*models.Partner, error) {
	p, err := s.partners.GetByID(ctx, partnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPartnerNotFound
	}
	return p, err
}

// ForgotPassword queues a reset email when the account exists. Callers
// answer the same way either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	p, err := s.partners.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	token, err := auth.GenerateActionToken(&s.cfg.JWT, auth.AudienceReset, p.ID, p.Email)
	if err != nil {
		return err
	}
	s.notify.PasswordReset(ctx, p, token)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	p, err := s.partnerFromToken(ctx, auth.AudienceReset, token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.partners.Update(ctx, p.Email, repository.FieldChange{Col: repository.ColPassword, Value: string(hash)}); err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("email", p.Email))
	return nil
}

func (s *AuthService) RequestVerify(ctx context.Context, email string) error {
	p, err := s.partners.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.IsVerified || !p.IsActive {
		return nil
	}
	s.sendVerification(ctx, p)
	return nil
}

// Verify marks the partner verified and credits their referrer.
func (s *AuthService) Verify(ctx context.Context, token string) (*models.Partner, error) {
	p, err := s.partnerFromToken(ctx, auth.AudienceVerify, token)
	if err != nil {
		return nil, err
	}
	if p.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if err := s.partners.Update(ctx, p.Email, repository.FieldChange{Col: repository.ColIsVerified, Value: "TRUE"}); err != nil {
		return nil, err
	}
	p.IsVerified = true
	s.referrals.MarkOnboarding(ctx, p.Email, func(o *models.Onboarding) { o.IsVerified = true })
	if _, err := s.referrals.CreditVerification(ctx, p); err != nil {
		s.log.Error("verification credit", zap.String("email", p.Email), logging.Err(err))
	}
	return p, nil
}

func (s *AuthService) sendVerification(ctx context.Context, p *models.Partner) {
	token, err := auth.GenerateActionToken(&s.cfg.JWT, auth.AudienceVerify, p.ID, p.Email)
	if err != nil {
		s.log.Error("verification token", logging.Err(err))
		return
	}
	s.notify.Verification(ctx, p, token)
}

func (s *AuthService) partnerFromToken(ctx context.Context, audience, token string) (*models.Partner, error) {
	claims, err := auth.ParseActionToken(&s.cfg.JWT, audience, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	p, err := s.partners.GetByEmail(ctx, claims.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if p.ID != claims.PartnerID {
		return nil, ErrInvalidToken
	}
	return p, nil
}
