package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/checkout"
	"github.com/ariefcatur/go-marketplace-settlement/internal/commission"
	"github.com/ariefcatur/go-marketplace-settlement/internal/config"
	"github.com/ariefcatur/go-marketplace-settlement/internal/httpx"
	"github.com/ariefcatur/go-marketplace-settlement/internal/lifecycle"
	"github.com/ariefcatur/go-marketplace-settlement/internal/logger"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/payment"
	"github.com/ariefcatur/go-marketplace-settlement/internal/postgres"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"github.com/ariefcatur/go-marketplace-settlement/internal/wallet"
	"github.com/ariefcatur/go-marketplace-settlement/internal/withdrawal"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Environment, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, provider, err := metrics.Init(ctx, metrics.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal("metrics init", zap.Error(err))
	}

	// DB
	db, err := postgres.ConnectWithRetry(ctx, cfg.PostgresDSN, 10, 2*time.Second, func(attempt int, err error) {
		log.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(cfg.MigrationsPath, cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	store := &postgres.Store{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	payments, err := payment.NewRegistry(payment.Config{
		Environment: cfg.Environment,
		Bypass:      cfg.PaymentBypass,
		External: payment.ExternalConfig{
			GatewayURL: cfg.PaymentGatewayURL,
			MerchantID: cfg.PaymentMerchantID,
			Secret:     cfg.PaymentSecret,
			ReturnURL:  cfg.PaymentReturnURL,
		},
	}, time.Now)
	if err != nil {
		log.Fatal("payment gateways", zap.Error(err))
	}
	if payments.BypassEnabled() {
		log.Warn("payment bypass enabled, external payments settle without a provider")
	}

	commissions := commission.NewRegistry(store, log)
	ledger := wallet.NewLedger(store, commissions, m, log, wallet.Options{
		HoldWindow:  cfg.HoldWindow,
		Currency:    cfg.Currency,
		ServiceName: cfg.ServiceName,
	})
	h := &httpx.Handler{
		Checkout: checkout.NewService(store, payments, m, log, checkout.Options{
			OrderNumberRetries: cfg.OrderNumberRetries,
			Currency:           cfg.Currency,
			ServiceName:        cfg.ServiceName,
		}),
		Orders:         lifecycle.NewService(store, ledger, m, log, cfg.ServiceName, time.Now),
		Wallet:         ledger,
		Withdrawals:    withdrawal.NewProcessor(store, ledger, m, log, cfg.ServiceName, time.Now),
		Commissions:    commissions,
		Redis:          rdb,
		Logger:         log,
		PaymentTimeout: cfg.PaymentTimeout,
	}
	router := httpx.NewRouter(httpx.RouterOptions{Logger: log, Metrics: m, CORSOrigins: cfg.CORSOrigins})
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
}
