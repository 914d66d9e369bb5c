package router

import (
	"net/http"

	"enchiridion/config"
	"enchiridion/internal/domain"
	"enchiridion/internal/handler"
	"enchiridion/internal/logging"
	"enchiridion/internal/middleware"
	"enchiridion/internal/repository"
	"enchiridion/internal/service"
	"enchiridion/internal/store"
	"enchiridion/internal/ws"
	"enchiridion/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App is the wired HTTP engine plus the background pieces main runs.
type App struct {
	Engine  *gin.Engine
	Worker  *service.OutboxWorker
	Limiter *middleware.InMemoryRateLimiter
	Hub     *ws.Hub
}

func Setup(cfg *config.Config, st store.Store, outbox repository.Outbox, ledger repository.WebhookLedger, log *zap.Logger) *App {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Error("invalid TRUSTED_PROXIES, trusting none", logging.Err(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SetupCORS(&cfg.CORS))
	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	r.Use(middleware.RateLimit(limiter))

	// Repositories
	partnerRepo := repository.NewPartnerRepository(st)
	activityRepo := repository.NewActivityRepository(st)
	milestoneRepo := repository.NewMilestoneRepository(st)
	onboardingRepo := repository.NewOnboardingRepository(st)
	reviewRepo := repository.NewReviewRepository(st)
	logRepo := repository.NewLogRepository(st)

	locks := store.NewKeyedMutex()
	hub := ws.NewHub()

	// Outbox
	worker := service.NewOutboxWorker(outbox, cfg.Outbox, log)
	var mailer service.Mailer = service.NewLogMailer(log)
	if cfg.Mail.Host != "" {
		mailer = service.NewSMTPMailer(cfg.Mail)
	} else {
		log.Warn("MAIL_HOST not set, emails are logged only")
	}
	pushSvc := service.NewPushService(cfg.Firebase.CredentialsFile, cfg.Firebase.BroadcastTopic, log)
	if pushSvc != nil {
		log.Info("FCM topic push enabled", zap.String("topic", cfg.Firebase.BroadcastTopic))
	} else {
		log.Info("FCM topic push disabled, set FIREBASE_CREDENTIALS to enable")
	}

	// Services
	notifySvc := service.NewNotificationService(worker, cfg, log)
	referralSvc := service.NewReferralService(partnerRepo, activityRepo, milestoneRepo, onboardingRepo, logRepo, locks, notifySvc, hub, cfg.Referral, log)
	milestoneSvc := service.NewMilestoneService(partnerRepo, activityRepo, milestoneRepo, logRepo, locks, notifySvc, hub, log)
	payoutSvc := service.NewPayoutService(partnerRepo, activityRepo, logRepo, locks, notifySvc, log)
	reportSvc := service.NewReportService(partnerRepo, activityRepo, locks, log)
	broadcastSvc := service.NewBroadcastService(logRepo, hub, worker, log)
	reviewSvc := service.NewReviewService(reviewRepo)
	var verifier service.TransactionVerifier
	if cfg.Paystack.SecretKey != "" && cfg.Paystack.VerifyManual {
		verifier = payment.NewPaystackClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey)
	}
	paymentSvc := service.NewPaymentService(ledger, worker, verifier, log)
	authSvc := service.NewAuthService(cfg, partnerRepo, referralSvc, notifySvc, locks, log)

	worker.Register(domain.OutboxEmail, service.EmailHandler(mailer))
	worker.Register(domain.OutboxPurchaseCredit, service.PurchaseCreditHandler(referralSvc, log))
	worker.Register(domain.OutboxBroadcastPush, service.PushHandler(pushSvc))

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, log)
	referralHandler := handler.NewReferralHandler(referralSvc, milestoneSvc, reportSvc, paymentSvc, log)
	payoutHandler := handler.NewPayoutHandler(payoutSvc, log)
	reportHandler := handler.NewReportHandler(reportSvc, log)
	broadcastHandler := handler.NewBroadcastHandler(broadcastSvc, log)
	reviewHandler := handler.NewReviewHandler(reviewSvc, log)
	paystackHandler := handler.NewPaystackWebhookHandler(paymentSvc, cfg.Paystack.SecretKey, log)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalAuth := middleware.OptionalAuth(&cfg.JWT)
	adminMw := middleware.SuperuserRequired()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Enchiridion referral API is running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/feed", ws.UpgradeFeedWS(&cfg.JWT, ws.NewUpgrader(cfg.CORS.AllowedOrigins), hub))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/jwt/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/request-verify-token", authHandler.RequestVerifyToken)
		authGroup.POST("/verify", authHandler.Verify)
	}
	r.GET("/users/me", authMw, authHandler.Me)

	ref := r.Group("/referral")
	{
		// public landing-page endpoints
		ref.POST("/record-visit", referralHandler.RecordVisit)
		ref.POST("/track-visit", referralHandler.TrackVisit)
		ref.POST("/record-share", referralHandler.RecordShare)
		ref.POST("/capture-lead", referralHandler.CaptureLead)
		ref.POST("/subscribe-newsletter", referralHandler.SubscribeNewsletter)
		ref.POST("/distributor-lead", optionalAuth, referralHandler.DistributorLead)
		ref.GET("/leaderboard", referralHandler.Leaderboard)
		ref.GET("/recent-milestones", referralHandler.RecentMilestones)
		ref.GET("/masters", referralHandler.Masters)
		ref.GET("/global-broadcasts", broadcastHandler.List)
		ref.POST("/paystack/webhook", paystackHandler.Handle)

		ref.GET("/stats", authMw, referralHandler.Stats)
		ref.GET("/progress", authMw, referralHandler.Progress)
		ref.POST("/update-payout", authMw, referralHandler.UpdatePayout)
		ref.POST("/log-activity", authMw, referralHandler.LogActivity)
		ref.POST("/apply-milestone", authMw, referralHandler.ApplyMilestone)
	}
	admin := r.Group("/referral")
	admin.Use(authMw, adminMw)
	{
		admin.POST("/credit-purchase", referralHandler.CreditPurchase)
		admin.POST("/global-broadcasts", broadcastHandler.Create)
		admin.POST("/mark-as-paid", payoutHandler.MarkAsPaid)
		admin.POST("/audit/revert", payoutHandler.Revert)
		admin.GET("/audit/verify", reportHandler.AuditVerify)
		admin.POST("/sync-all", reportHandler.SyncAll)
		admin.GET("/report/monthly/csv", reportHandler.MonthlyCSV)
	}

	reviews := r.Group("/reviews")
	{
		reviews.GET("/", reviewHandler.Approved)
		reviews.POST("/", reviewHandler.Submit)
		reviews.GET("/all", authMw, adminMw, reviewHandler.List)
		reviews.PUT("/:id", authMw, adminMw, reviewHandler.Moderate)
	}

	return &App{Engine: r, Worker: worker, Limiter: limiter, Hub: hub}
}
