package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/config"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/handler"
	"github.com/boddenberg/iagente-vida-go/internal/infra/chatwoot"
	"github.com/boddenberg/iagente-vida-go/internal/infra/events"
	"github.com/boddenberg/iagente-vida-go/internal/infra/llm"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"
	"github.com/boddenberg/iagente-vida-go/internal/infra/statestore"
	"github.com/boddenberg/iagente-vida-go/internal/infra/woztell"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/port"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
	"github.com/boddenberg/iagente-vida-go/internal/router"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel),
		zap.String("state_backend", cfg.StateBackend),
		zap.Duration("state_ttl", cfg.StateTTL),
		zap.Bool("whatsapp", cfg.WhatsAppEnabled()),
		zap.Bool("chatwoot", cfg.ChatwootEnabled()),
		zap.Bool("nats", cfg.NATSURL != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "iagente-vida")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- State store ---
	store, err := statestore.Open(rootCtx, statestore.Options{
		Backend:     cfg.StateBackend,
		TTL:         cfg.StateTTL,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err))
	}
	defer store.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	llmClient, err := llm.New(httpClient, llm.Options{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Resilience:  resilienceCfg,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to create llm client", zap.Error(err))
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY not set, every turn will use the deterministic fallbacks")
	}

	var sender port.MessageSender
	if cfg.WhatsAppEnabled() {
		sender = woztell.NewClient(httpClient, cfg.WoztellAPIURL, cfg.WoztellAPIToken, resilienceCfg, metrics, logger)
	} else {
		logger.Warn("WOZTELL_API_TOKEN not set, WhatsApp webhook disabled")
	}

	var crm port.CRMSync
	if cfg.ChatwootEnabled() {
		cw := chatwoot.NewClient(httpClient, chatwoot.Options{
			BaseURL:   cfg.ChatwootURL,
			Token:     cfg.ChatwootAPIToken,
			AccountID: cfg.ChatwootAccountID,
			InboxID:   cfg.ChatwootInboxID,
		}, resilienceCfg, metrics, logger)
		crm = chatwoot.NewSync(cw, logger)
	}

	var publisher port.EventPublisher = events.Noop{}
	if cfg.NATSURL != "" {
		pub, err := events.NewPublisher(cfg.NATSURL, cfg.NATSToken, logger)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer pub.Close()
		publisher = pub
	}

	// --- Prompts ---
	prompts := instructions.NewLoader(cfg.InstructionsDir, cfg.InstructionsTTL, logger)
	defer prompts.Close()

	// --- Services ---
	env := &responder.Env{
		LLM:       llmClient,
		Prompts:   prompts,
		Extractor: extractor.New(llmClient, metrics, logger),
		Engine:    quoting.NewEngine(),
		Metrics:   metrics,
		Logger:    logger,
	}
	rt := router.New(router.NewClassifier(llmClient, metrics, logger), llmClient, prompts, metrics, logger)
	conversation := service.NewConversation(store, rt, env, publisher, metrics, logger)

	var channel *service.ChannelService
	if sender != nil {
		channel = service.NewChannelService(conversation, sender, crm, metrics, logger)
	}

	admin := service.NewAdminAuth(cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTTTL, logger)
	if !admin.Enabled() {
		logger.Warn("ADMIN_PASSWORD_HASH or JWT_SECRET not set, admin routes disabled")
	}

	// --- Router ---
	mux := handler.NewRouter(handler.Deps{
		Conversation:  conversation,
		Channel:       channel,
		Admin:         admin,
		Store:         store,
		LLM:           llmClient,
		VerifyToken:   cfg.WhatsAppVerifyToken,
		WebhookSecret: cfg.WoztellWebhookSecret,
		Metrics:       metrics,
		Logger:        logger,
	})

	// --- Expired conversation sweep ---
	go sweepLoop(rootCtx, conversation, cfg.StateTTL, cfg.StateSweepInterval, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func sweepLoop(ctx context.Context, conv *service.Conversation, ttl, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := conv.Sweep(ctx, ttl); err != nil {
				logger.Warn("state sweep failed", zap.Error(err))
			}
		}
	}
}
