// Package app builds the relay from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-relay/internal/api"
	"github.com/ytget/yt-relay/internal/bot"
	"github.com/ytget/yt-relay/internal/catalog"
	"github.com/ytget/yt-relay/internal/chunker"
	"github.com/ytget/yt-relay/internal/config"
	"github.com/ytget/yt-relay/internal/coordinator"
	"github.com/ytget/yt-relay/internal/download"
	"github.com/ytget/yt-relay/internal/extractor"
	"github.com/ytget/yt-relay/internal/kv"
	"github.com/ytget/yt-relay/internal/platform"
	"github.com/ytget/yt-relay/internal/probe"
	"github.com/ytget/yt-relay/internal/registry"
	"github.com/ytget/yt-relay/internal/relay"
)

// ShutdownTimeout bounds the graceful stop of the HTTP server
const ShutdownTimeout = 10 * time.Second

// NewLogger creates the process logger described by cfg
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.JSONLogs() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// App is a wired relay
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	botAPI      *tgbotapi.BotAPI
	coordinator *coordinator.Coordinator
	bot         *bot.Bot
	server      *http.Server
	closers     []func() error
}

// New connects to the chat platform and the configured store and builds
// the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := platform.CreateDirectoryIfNotExists(cfg.DownloadDir); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting to bot api: %w", err)
	}
	logger.Info("authorized on bot account", "username", botAPI.Self.UserName)

	a := &App{cfg: cfg, logger: logger, botAPI: botAPI}

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}

	telegram := relay.NewTelegram(botAPI, cfg.EditsPerSecond, logger.With("component", "telegram"))
	sink, err := a.newSink(telegram)
	if err != nil {
		a.close()
		return nil, err
	}

	tasks := registry.New()
	a.coordinator = coordinator.New(coordinator.Deps{
		Catalog:  NewCatalog(cfg, logger),
		Fetcher:  NewEngine(cfg, logger),
		Splitter: chunker.New(logger.With("component", "chunker")),
		Sink:     sink,
		Notifier: telegram,
		Store:    store,
		Tasks:    tasks,
	}, coordinator.Options{
		DownloadDir:      cfg.DownloadDir,
		MaxPartSize:      cfg.MaxPartSize,
		ProgressInterval: cfg.ProgressInterval,
		SessionTTL:       cfg.SessionTTL,
		BannedKeywords:   cfg.BannedKeywords,
	}, logger.With("component", "coordinator"))

	a.bot = bot.New(a.coordinator, telegram, logger.With("component", "bot"))
	return a, nil
}

// NewCatalog creates the format catalog on the yt-dlp backend
func NewCatalog(cfg *config.Config, logger *slog.Logger) *catalog.Service {
	svc := catalog.NewService(extractor.NewYTDLP(logger.With("component", "extractor")), logger.With("component", "catalog"))
	svc.SetTimeout(cfg.MetadataTimeout)
	return svc
}

// NewEngine creates the fetch engine with playlist expansion, the ffprobe
// fallback when ffprobe is installed, and the configured retries.
func NewEngine(cfg *config.Config, logger *slog.Logger) *download.Engine {
	backend := extractor.NewYTDLP(logger.With("component", "extractor"))
	playlists := extractor.NewPlaylists()
	playlists.SetTimeout(cfg.MetadataTimeout)

	opts := []download.Option{
		download.WithPlaylists(playlists),
		download.WithMaxPartSize(cfg.MaxPartSize),
		download.WithRetries(cfg.FetchRetries, cfg.RetryDelay),
	}
	if ffprobe := probe.New(logger.With("component", "probe")); ffprobe.Available() {
		opts = append(opts, download.WithProber(ffprobe))
	} else {
		logger.Warn("ffprobe not found, relayed files carry no media properties")
	}
	if cfg.CheckCertificates {
		opts = append(opts, download.WithCertificateChecks())
	}
	return download.NewEngine(backend, logger.With("component", "engine"), opts...)
}

func (a *App) newStore(ctx context.Context) (kv.MembershipStore, error) {
	if a.cfg.StoreBackend != config.StoreRedis {
		return kv.NewMemory(), nil
	}
	store, err := kv.Dial(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	a.logger.Info("using redis store", "addr", a.cfg.RedisAddr, "db", a.cfg.RedisDB)
	return store, nil
}

func (a *App) newSink(telegram *relay.Telegram) (relay.Sink, error) {
	if a.cfg.RelayMode != config.RelayOBS {
		return telegram, nil
	}
	sink, err := relay.NewObsSink(a.cfg.ObsEndpoint, a.cfg.ObsAccessKey, a.cfg.ObsSecretKey, a.cfg.ObsBucket, a.logger.With("component", "obs"))
	if err != nil {
		return nil, fmt.Errorf("creating obs client: %w", err)
	}
	if a.cfg.ObsPrefix != "" {
		sink.SetPrefix(a.cfg.ObsPrefix)
	}
	a.closers = append(a.closers, func() error {
		sink.Close()
		return nil
	})
	a.logger.Info("relaying files to obs", "endpoint", a.cfg.ObsEndpoint, "bucket", a.cfg.ObsBucket)
	return sink, nil
}

// Run serves the HTTP API and receives updates until ctx is done, then
// stops accepting work, cancels running tasks and waits for their cleanup.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var updates api.Dispatcher
	if a.cfg.Webhook {
		updates = a.bot
		if err := bot.SetWebhook(a.botAPI, a.cfg.WebhookURL); err != nil {
			return err
		}
		a.logger.Info("webhook registered", "url", a.cfg.WebhookURL)
	} else if err := bot.DeleteWebhook(a.botAPI); err != nil {
		a.logger.Warn("failed to clear webhook", "error", err)
	}

	handler := api.NewHandler(ctx, a.coordinator.Tasks(), updates, a.logger.With("component", "api"))
	a.server = &http.Server{Addr: a.cfg.Addr, Handler: api.NewRouter(handler)}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("starting http server", "addr", a.cfg.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if !a.cfg.Webhook {
		go func() {
			if err := a.bot.Poll(ctx, a.botAPI, bot.DefaultPollTimeout); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case runErr = <-errCh:
		a.logger.Error("stopping after failure", "error", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown failed", "error", err)
	}

	a.bot.Wait()
	a.logger.Info("waiting for running tasks", "tasks", a.coordinator.Tasks().Len())
	a.coordinator.Close()
	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
