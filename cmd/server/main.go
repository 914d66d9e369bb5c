package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"enchiridion/config"
	"enchiridion/internal/database"
	"enchiridion/internal/logging"
	"enchiridion/internal/repository"
	"enchiridion/internal/router"
	"enchiridion/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := openStore(ctx, cfg, log)
	defer st.Close()
	if err := repository.EnsureTables(ctx, st); err != nil {
		log.Fatal("ensure sheets", logging.Err(err))
	}

	outbox, ledger := openOutbox(cfg, log)
	app := router.Setup(cfg, st, outbox, ledger, log)
	go app.Worker.Run(ctx)
	go app.Limiter.Cleanup(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", logging.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", logging.Err(err))
	}
	log.Info("server stopped")
}

// openStore connects to the spreadsheet. Without a spreadsheet ID, or when
// the credentials are rejected, it falls back to an in-memory store.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) store.Store {
	if cfg.Sheets.SpreadsheetID == "" {
		log.Warn("SPREADSHEET_ID not set, using in-memory store")
		return store.NewMemoryStore()
	}
	st, err := store.NewSheetsStore(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile)
	if err != nil {
		log.Error("connect to google sheets, using in-memory store", logging.Err(err))
		return store.NewMemoryStore()
	}
	log.Info("google sheets connected", zap.String("spreadsheet", cfg.Sheets.SpreadsheetID))
	return st
}

// openOutbox uses MySQL when DATABASE_DSN is set. Otherwise queued messages
// live in memory and are lost on restart.
func openOutbox(cfg *config.Config, log *zap.Logger) (repository.Outbox, repository.WebhookLedger) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_DSN not set, outbox and webhook ledger are in memory")
		return repository.NewMemoryOutbox(), repository.NewMemoryWebhookLedger()
	}
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", logging.Err(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", logging.Err(err))
	}
	return repository.NewOutboxRepository(db), repository.NewWebhookRepository(db)
}
