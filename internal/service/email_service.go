package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/smtp"

	"enchiridion/config"
	"enchiridion/internal/domain"
	"enchiridion/internal/logging"
	"enchiridion/internal/models"
	"enchiridion/pkg/currency"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailMessage is the outbox payload of kind "email".
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	if m.cfg.Host == "" || m.cfg.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n", m.cfg.From, to, subject, body))
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg)
}

// LogMailer stands in for SMTP in development and only logs the message.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info("email not sent, SMTP disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// EmailHandler delivers outbox messages of kind "email".
func EmailHandler(mailer Mailer) OutboxHandler {
	return func(ctx context.Context, payload []byte) error {
		var msg EmailMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return mailer.Send(ctx, msg.To, msg.Subject, msg.Body)
	}
}

// NotificationService turns domain events into queued emails. Queueing
// failures are logged and never fail the calling operation.
type NotificationService struct {
	outbox      Enqueuer
	frontendURL string
	adminEmail  string
	log         *zap.Logger
}

func NewNotificationService(outbox Enqueuer, cfg *config.Config, log *zap.Logger) *NotificationService {
	return &NotificationService{
		outbox:      outbox,
		frontendURL: cfg.Server.FrontendURL,
		adminEmail:  cfg.Mail.Admin,
		log:         log.Named("notify"),
	}
}

func (s *NotificationService) queue(ctx context.Context, to, subject, body string) {
	if s == nil || to == "" {
		return
	}
	if err := s.outbox.Enqueue(ctx, domain.OutboxEmail, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
		s.log.Error("queue email", zap.String("to", to), logging.Err(err))
	}
}

func (s *NotificationService) PasswordReset(ctx context.Context, p *models.Partner, token string) {
	link := s.frontendURL + "/reset-password?token=" + token
	s.queue(ctx, p.Email, "Reset your Enchiridion password", fmt.Sprintf(
		`<p>Hello %s,</p><p>Use the link below to choose a new password. It expires in one hour.</p><p><a href="%s">Reset password</a></p>`,
		html.EscapeString(p.FullName), link))
}

func (s *NotificationService) Verification(ctx context.Context, p *models.Partner, token string) {
	link := s.frontendURL + "/verify?token=" + token
	s.queue(ctx, p.Email, "Verify your Enchiridion partner account", fmt.Sprintf(
		`<p>Hello %s,</p><p>Confirm your email to activate referral credits.</p><p><a href="%s">Verify email</a></p>`,
		html.EscapeString(p.FullName), link))
}

func (s *NotificationService) Welcome(ctx context.Context, p *models.Partner) {
	s.queue(ctx, p.Email, "Welcome to the Enchiridion partner program", fmt.Sprintf(
		`<p>Hello %s,</p><p>Your referral code is <strong>%s</strong>. Share it to start earning.</p>`,
		html.EscapeString(p.FullName), html.EscapeString(p.ReferralCode)))
}

func (s *NotificationService) ReferralCredited(ctx context.Context, p *models.Partner, activity string, points float64) {
	s.queue(ctx, p.Email, "You earned referral points", fmt.Sprintf(
		`<p>Hello %s,</p><p>You earned %.2f points (%s) for a %s.</p><p>Current balance: %s.</p>`,
		html.EscapeString(p.FullName), points, currency.Naira(currency.RevenueFor(points)),
		html.EscapeString(activity), currency.Naira(p.Revenue)))
}

func (s *NotificationService) TierUnlocked(ctx context.Context, p *models.Partner, tier domain.Tier) {
	s.queue(ctx, p.Email, "Milestone bonus unlocked", fmt.Sprintf(
		`<p>Congratulations %s!</p><p>You reached %d referrals and earned a %s bonus.</p>`,
		html.EscapeString(p.FullName), tier.Threshold, currency.Naira(tier.Bonus)))
}

func (s *NotificationService) PayoutCompleted(ctx context.Context, p *models.Partner, amount float64) {
	s.queue(ctx, p.Email, "Your payout has been processed", fmt.Sprintf(
		`<p>Hello %s,</p><p>We have paid out %s to your account ending %s.</p><p>Lifetime earnings: %s.</p>`,
		html.EscapeString(p.FullName), currency.Naira(amount), lastDigits(p.AccountNumber, 4),
		currency.Naira(p.LifetimeEarnings)))
}

func (s *NotificationService) AdminAlert(ctx context.Context, subject, body string) {
	s.queue(ctx, s.adminEmail, subject, "<p>"+html.EscapeString(body)+"</p>")
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
