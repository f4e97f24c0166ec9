package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/chatclaw/internal/bot"
	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/commands"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
	"github.com/nextlevelbuilder/chatclaw/internal/httpapi"
	"github.com/nextlevelbuilder/chatclaw/internal/images"
	"github.com/nextlevelbuilder/chatclaw/internal/providers"
	"github.com/nextlevelbuilder/chatclaw/internal/schedule"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
	"github.com/nextlevelbuilder/chatclaw/internal/store/pg"
	"github.com/nextlevelbuilder/chatclaw/internal/store/sqlite"
	"github.com/nextlevelbuilder/chatclaw/internal/summary"
	"github.com/nextlevelbuilder/chatclaw/internal/tracing"
	"github.com/nextlevelbuilder/chatclaw/internal/trigger"
	"github.com/nextlevelbuilder/chatclaw/internal/wechat"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		fmt.Println("No configuration found. Starting setup wizard...")
		fmt.Println()
		if err := runOnboard(cfgPath); err != nil {
			slog.Error("onboarding failed", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	holder := config.NewHolder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	adapter, err := wechat.NewAdapter()
	if err != nil {
		slog.Error("chat adapter unavailable", "error", err)
		os.Exit(1)
	}

	stores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// Optional services by config.
	var cmdService *commands.Service
	if cfg.Commands.Enabled() {
		cmdService = commands.NewService(cfg.Commands.APIBase)
		if err := cmdService.Refresh(ctx); err != nil {
			slog.Warn("initial command table fetch failed", "error", err)
		}
	}

	var ai *providers.OpenAIProvider
	if cfg.AI.Enabled() {
		ai = providers.NewOpenAIProvider(cfg.AI)
		slog.Info("AI replies enabled", "model", cfg.AI.Model)
	}

	var imageService *images.Service
	if cfg.Images.Enabled {
		imageService = images.NewService(cfg.Images.APIURL)
	}

	events := bus.NewHub()
	gate := &bot.Gate{}
	queue := make(chan trigger.Event, cfg.Trigger.QueueSize)

	// Focus the watched group before the first window read.
	if err := adapter.FindChat(ctx, cfg.Group.Name); err != nil {
		slog.Error("could not open group chat", "group", cfg.Group.Name, "error", err)
		os.Exit(1)
	}

	detector := bot.NewDetector(adapter, stores.Processed, holder, tableProvider(cmdService), events, queue)
	if err := detector.SeedInitial(ctx); err != nil {
		slog.Error("history seeding failed", "error", err)
		os.Exit(1)
	}

	processor := bot.NewProcessor(queue, gate, adapter, holder, events,
		answerProvider(ai), imageProvider(imageService), commandRunner(cmdService))

	var summaryService *summary.Service
	if cfg.Summary.Enabled && ai != nil {
		archive := summary.NewArchiveClient(cfg.Summary.APIBase)
		summaryService = summary.NewService(holder, archive, ai, adapter, gate)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return detector.Run(ctx) })
	g.Go(func() error { return processor.Run(ctx) })
	g.Go(func() error { return config.Watch(ctx, cfgPath, holder) })

	if stores.Tasks != nil {
		runner := schedule.NewRunner(stores.Tasks, adapter, gate)
		g.Go(func() error { return runner.Run(ctx) })
	}
	if summaryService != nil && cfg.Summary.Cron != "" {
		g.Go(func() error { return summaryService.RunCron(ctx) })
	}
	if cfg.HTTP.Enabled {
		server := httpapi.NewServer(holder, adapter, gate, stores.Tasks, summaryRunner(summaryService), events)
		mux := server.BuildMux()
		tsCleanup := initTailscale(ctx, cfg, mux)
		if tsCleanup != nil {
			defer tsCleanup()
		}
		g.Go(func() error { return server.Start(ctx) })
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	slog.Info("chatclaw starting",
		"version", Version,
		"group", cfg.Group.Name,
		"keyword", cfg.Trigger.Keyword,
		"mode", databaseMode(cfg),
	)

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("runtime error", "error", err)
		os.Exit(1)
	}
	slog.Info("chatclaw stopped")
}

// openStores picks backends by database mode. Managed mode keeps the
// processed set in Postgres so dedup state follows the account across
// hosts; tasks stay local either way.
func openStores(cfg *config.Config) (*store.Stores, error) {
	local, err := sqlite.Open(config.ExpandHome(cfg.Database.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if cfg.Database.IsManagedMode() {
		processed, err := pg.Open(cfg.Database.PostgresDSN)
		if err != nil {
			local.Close()
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		slog.Info("managed mode: processed set in Postgres")
		return &store.Stores{Processed: processed, Tasks: local}, nil
	}
	return &store.Stores{Processed: local, Tasks: local}, nil
}

func databaseMode(cfg *config.Config) string {
	if cfg.Database.IsManagedMode() {
		return "managed"
	}
	return "standalone"
}

// Nil-safe interface adapters: a nil *Service must become a nil interface,
// not an interface holding a nil pointer.

func tableProvider(s *commands.Service) bot.TableProvider {
	if s == nil {
		return nil
	}
	return s
}

func answerProvider(p *providers.OpenAIProvider) bot.AnswerProvider {
	if p == nil {
		return nil
	}
	return p
}

func imageProvider(s *images.Service) bot.ImageProvider {
	if s == nil {
		return nil
	}
	return s
}

func commandRunner(s *commands.Service) bot.CommandRunner {
	if s == nil {
		return nil
	}
	return s
}

func summaryRunner(s *summary.Service) httpapi.SummaryRunner {
	if s == nil {
		return nil
	}
	return s
}
