package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/database"
	"github.com/tishajain880/Chronobank/internal/export"
	"github.com/tishajain880/Chronobank/internal/goal"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/loan"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/notify"
	"github.com/tishajain880/Chronobank/internal/router"
	"github.com/tishajain880/Chronobank/internal/transfer"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	// ensure basic directories exist
	for _, dir := range []string{filepath.Dir(cfg.Database.Path), cfg.Export.Dir} {
		if err := ensureDir(dir); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("create directory")
		}
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	notifier := buildNotifier(cfg.Alert, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := chain.NewGormRepository(db)
	c, err := repo.Open(ctx)
	if err != nil {
		// a tampered chain is reported and refuses to start
		notify.ReportIntegrity(ctx, notifier, err)
		log.Fatal().Err(err).Msg("open audit chain")
	}
	log.Info().Int("blocks", len(c.Blocks())).Str("tip", c.Last().Hash).Msg("audit chain loaded")

	store := ledger.NewStore(db, log, ledger.WithMoneyRate(cfg.Ledger.MoneyToMinutesRate))
	if err := store.CheckAll(ctx); err != nil {
		notify.ReportIntegrity(ctx, notifier, err)
		log.Error().Err(err).Msg("balance invariant violated at startup")
	}

	transfers := transfer.NewEngine(store, c, repo, cfg.Ledger, log)
	loans := loan.NewService(store, cfg.Loan, log)
	verifier := chain.NewVerifier(c, repo, log)
	monitor := notify.NewMonitor(store, loans, transfers, verifier, notifier, cfg.Alert, log)

	svc := router.Services{
		Store:     store,
		Transfers: transfers,
		Goals:     goal.NewService(store, log),
		Sessions:  goal.NewSessions(goal.DefaultDepth),
		Loans:     loans,
		Verifier:  verifier,
		Exporter:  export.NewExporter(db, c, cfg.Export.Dir),
		Monitor:   monitor,
		Notifier:  notifier,
	}

	go monitor.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(cfg, svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("run server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("server stopped")
}

func buildNotifier(cfg config.AlertConfig, log zerolog.Logger) notify.Notifier {
	multi := notify.Multi{notify.LogNotifier{Log: log}}
	if cfg.TelegramToken == "" {
		return multi
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("telegram notifier disabled")
		return multi
	}
	return append(multi, tg)
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
