// Package app wires configuration, storage and services into the HTTP
// surface shared by the server, the Lambda entry point and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/etk18/portfolio/internal/api"
	"github.com/etk18/portfolio/internal/assistant"
	"github.com/etk18/portfolio/internal/ats"
	"github.com/etk18/portfolio/internal/auth"
	"github.com/etk18/portfolio/internal/chat"
	"github.com/etk18/portfolio/internal/config"
	"github.com/etk18/portfolio/internal/contact"
	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/gate"
	"github.com/etk18/portfolio/internal/knowledge"
	"github.com/etk18/portfolio/internal/llm"
	"github.com/etk18/portfolio/internal/middleware"
	"github.com/etk18/portfolio/internal/realtime"
	"github.com/etk18/portfolio/internal/store"
)

const (
	loginAttempts = 5
	loginWindow   = time.Minute
)

// App holds the long-lived services of one process.
type App struct {
	Config        *config.Config
	Repo          *store.SQLiteStore
	Conversations store.ConversationStore
	Knowledge     *knowledge.Base
	LLM           *llm.Client
	Sessions      *chat.Manager
	Sockets       *realtime.Registry
	Completer     *assistant.PortfolioCompleter
	Admin         *assistant.Admin
	Extractor     *ats.Extractor
	Analyzer      *ats.Analyzer
	ATS           *ats.Checker
	Auth          *auth.Authenticator
	Contact       *contact.Client

	logger     assistant.ConversationLogger
	limiters   []*middleware.RateLimiter
	handler    http.Handler
	ownsConvos bool
}

// New opens the stores and builds every service. The returned App must be
// closed. spa may be nil when no frontend is served.
func New(cfg *config.Config, logger *slog.Logger, spa http.Handler) (*App, error) {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a := &App{Config: cfg, Repo: repo}

	if err := a.init(logger, spa); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close after init error", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(logger *slog.Logger, spa http.Handler) error {
	cfg := a.Config

	conversations, err := store.OpenConversations(cfg.DatabaseURL, a.Repo)
	if err != nil {
		return fmt.Errorf("initialize conversation store: %w", err)
	}
	a.Conversations = conversations
	a.ownsConvos = conversations != store.ConversationStore(a.Repo)

	a.Knowledge, err = knowledge.NewBase(cfg.PortfolioDataPath)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}

	a.logger, err = assistant.NewConversationLogger(assistant.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}

	a.LLM = llm.New(cfg.LLM)
	if !cfg.LLMEnabled() {
		slog.Info("AI features disabled (GROQ_API_KEY not set)")
	}

	a.Completer = assistant.NewPortfolioCompleter(a.LLM, a.Knowledge, a.Conversations)
	chatCfg := chat.DefaultConfig()
	chatCfg.Cooldown = cfg.Assistant.Cooldown
	chatCfg.Timeout = cfg.LLM.Timeout
	chatCfg.Observer = assistant.LogObserver{Logger: a.logger, Channel: "assistant"}
	assistantGate := gate.New(a.Repo, domain.FeatureAssistant, cfg.Assistant.FreeLimit, cfg.Assistant.PremiumPasskey)
	a.Sessions = chat.NewManager(assistantGate, a.Completer, chatCfg)
	a.Sockets = realtime.NewRegistry()

	a.Admin = assistant.NewAdmin(a.LLM, a.Conversations)

	a.Extractor = ats.NewExtractor()
	a.Analyzer = ats.NewAnalyzer(a.LLM)
	atsGate := gate.New(a.Repo, domain.FeatureATS, cfg.ATS.FreeLimit, cfg.ATS.PremiumPasskey)
	a.ATS = ats.NewChecker(atsGate, a.Extractor, a.Analyzer)

	a.Auth, err = auth.New(cfg.Admin)
	if err != nil {
		return fmt.Errorf("initialize admin auth: %w", err)
	}
	a.Contact = contact.New(cfg.Contact)

	visitorLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	loginLimiter := middleware.NewRateLimiter(loginAttempts, loginWindow)
	a.limiters = []*middleware.RateLimiter{visitorLimiter, loginLimiter}
	perVisitor := middleware.RateLimit(visitorLimiter, api.VisitorKey)

	a.handler = api.NewRouter(api.Routes{
		AllowedOrigins: cfg.AllowedOrigins,
		IsDevelopment:  cfg.IsDevelopment(),
		Visitors:       a.Repo,
		Health:         api.NewHealthHandler(a.Repo, a.Conversations, cfg.LLMEnabled()),
		Portfolio:      api.NewPortfolioHandler(a.Knowledge),
		Assistant:      api.NewAssistantHandler(a.Sessions, assistant.SuggestedQuestions, perVisitor),
		ATS:            api.NewATSHandler(a.ATS, cfg.ATS.MaxUploadBytes, perVisitor),
		Contact:        api.NewContactHandler(a.Contact),
		Admin:          api.NewAdminHandler(a.Auth, a.Admin, a.Conversations, middleware.RateLimit(loginLimiter, api.IPKey)),
		Realtime:       realtime.NewHandler(a.Sessions, a.Sockets, a.Repo, cfg.FrontendURL, cfg.IsDevelopment()),
		SPA:            spa,
	})
	return nil
}

// Handler returns the assembled router.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start launches the background workers. They stop with ctx.
func (a *App) Start(ctx context.Context) error {
	if err := a.Knowledge.Watch(ctx); err != nil {
		return fmt.Errorf("watch portfolio: %w", err)
	}
	for _, rl := range a.limiters {
		rl.StartEviction(ctx)
	}
	a.Sessions.StartSweeper(ctx, a.Config.SessionIdleTTL)
	StartVisitorCleanup(ctx, a.Repo, visitorRetention, func() {
		slog.Debug("Visitor cleanup pass finished", "chat_sessions", a.Sessions.Count(), "sockets", a.Sockets.Count())
	})
	return nil
}

// Close flushes the conversation log and closes the stores.
func (a *App) Close() error {
	var errs []error
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close conversation logger: %w", err))
		}
	}
	if a.ownsConvos && a.Conversations != nil {
		if err := a.Conversations.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close conversation store: %w", err))
		}
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
	}
	return errors.Join(errs...)
}
