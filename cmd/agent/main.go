package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/channel/telegram"
	"github.com/congelados/vendedor/internal/channel/whatsapp"
	"github.com/congelados/vendedor/internal/config"
	"github.com/congelados/vendedor/internal/conversation"
	"github.com/congelados/vendedor/internal/event"
	"github.com/congelados/vendedor/internal/extract"
	"github.com/congelados/vendedor/internal/fastpath"
	"github.com/congelados/vendedor/internal/handlers"
	"github.com/congelados/vendedor/internal/llm"
	"github.com/congelados/vendedor/internal/logger"
	"github.com/congelados/vendedor/internal/metrics"
	"github.com/congelados/vendedor/internal/order"
	"github.com/congelados/vendedor/internal/reply"
	"github.com/congelados/vendedor/internal/resolver"
	"github.com/congelados/vendedor/internal/server"
	"github.com/congelados/vendedor/internal/session"
	"github.com/congelados/vendedor/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,

			// domain
			provideCatalog,
			providePicker,
			provideClassifier,
			provideExtractor,
			provideMachine,
			provideCompleter,
			provideMetrics,
			provideResolver,
			provideStore,
			provideSweeper,
			event.NewHub,
			provideConversation,

			// transports
			provideTelegram,
			provideWhatsApp,

			provideServerHandler(provideSystemHandler),
			provideServerHandler(provideDemoHandler),
			provideServerHandler(provideWhatsAppHandler),
			provideServer,
		),
		fx.Invoke(
			trackSessions,
			startSweeper,
			startTelegram,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideCatalog(log *slog.Logger, cfg config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.CurrencySymbol)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded", slog.Int("products", cat.Len()), slog.String("path", cfg.Catalog.Path))
	return cat, nil
}

func providePicker(cfg config.Config) reply.Picker {
	return reply.NewRandomPicker(cfg.Reply.Seed)
}

func provideClassifier(cat *catalog.Catalog, picker reply.Picker, cfg config.Config) *fastpath.Classifier {
	return fastpath.New(cat, fastpath.Options{
		Picker:           picker,
		PolicyURL:        cfg.Catalog.PolicyURL,
		PromoProbability: cfg.Reply.PromoProbability,
	})
}

func provideExtractor(cat *catalog.Catalog) conversation.Extractor {
	return extract.New(cat)
}

func provideMachine(cat *catalog.Catalog, picker reply.Picker, classifier *fastpath.Classifier) *order.Machine {
	return order.New(cat, picker, classifier)
}

func provideCompleter(log *slog.Logger, cfg config.Config) (llm.Completer, error) {
	backend, err := llm.New(context.Background(), cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("llm backend: %w", err)
	}
	log.Info("llm backend", slog.String("provider", backend.Name()))
	return backend, nil
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideResolver(log *slog.Logger, backend llm.Completer, cat *catalog.Catalog, cfg config.Config, m *metrics.Metrics) *resolver.Resolver {
	opts := resolver.OptionsFromConfig(cfg.LLM)
	opts.Recorder = m
	return resolver.New(log, backend, cat, opts)
}

func provideStore(lc fx.Lifecycle, cfg config.Config) *session.Store {
	store := session.NewStore(session.WithHistoryLimit(cfg.Session.HistoryTurns))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store
}

func provideSweeper(log *slog.Logger, store *session.Store, cfg config.Config) (*session.Sweeper, error) {
	return session.NewSweeper(log, store, cfg.Session.SweepSpec, cfg.Session.IdleTimeout())
}

type conversationParams struct {
	fx.In

	Logger     *slog.Logger
	Catalog    *catalog.Catalog
	Store      *session.Store
	Classifier *fastpath.Classifier
	Extractor  conversation.Extractor
	Resolver   *resolver.Resolver
	Machine    *order.Machine
	Hub        *event.Hub
	Metrics    *metrics.Metrics
}

func provideConversation(p conversationParams) *conversation.Service {
	return conversation.NewService(p.Logger, conversation.Deps{
		Catalog:    p.Catalog,
		Store:      p.Store,
		Classifier: p.Classifier,
		Extractor:  p.Extractor,
		Resolver:   p.Resolver,
		Machine:    p.Machine,
		Publisher:  p.Hub,
		Recorder:   p.Metrics,
	})
}

func provideTelegram(log *slog.Logger, cfg config.Config, conv *conversation.Service) *telegram.Poller {
	return telegram.NewPoller(log, cfg.Telegram.BotToken, conv)
}

func provideWhatsApp(log *slog.Logger, cfg config.Config) *whatsapp.Client {
	return whatsapp.NewClient(log, cfg.WhatsApp)
}

func provideSystemHandler(log *slog.Logger, conv *conversation.Service, m *metrics.Metrics) *handlers.SystemHandler {
	return handlers.NewSystemHandler(log, conv, m.Handler())
}

func provideDemoHandler(log *slog.Logger, conv *conversation.Service, hub *event.Hub) *handlers.DemoHandler {
	return handlers.NewDemoHandler(log, conv, hub)
}

func provideWhatsAppHandler(log *slog.Logger, cfg config.Config, client *whatsapp.Client, conv *conversation.Service) *handlers.WhatsAppHandler {
	return handlers.NewWhatsAppHandler(log, cfg.WhatsApp.VerifyToken, client, conv)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func trackSessions(m *metrics.Metrics, conv *conversation.Service, hub *event.Hub) {
	m.TrackGauge("sessions", "active", "Open customer sessions.", func() float64 {
		return float64(conv.Stats().ActiveSessions)
	})
	m.TrackGauge("resolver", "cache_entries", "Cached language model intents.", func() float64 {
		return float64(conv.Stats().CacheEntries)
	})
	m.TrackGauge("events", "subscribers", "Open event stream subscriptions.", func() float64 {
		return float64(hub.Subscribers())
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *session.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sweeper.Stop(ctx)
		},
	})
}

func startTelegram(lc fx.Lifecycle, logger *slog.Logger, poller *telegram.Poller) {
	if !poller.Enabled() {
		logger.Info("telegram disabled: no bot token")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := poller.Start(ctx); err != nil {
				// the HTTP channels keep working without Telegram
				logger.Error("telegram start failed", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return poller.Stop(ctx)
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
) {
	fmt.Printf("Starting Vendedor Agent %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
