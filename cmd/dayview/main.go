package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"dayview/internal/config"
	"dayview/internal/ics"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/schedule"
	"dayview/internal/snapshot"
	"dayview/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	date       string
	refresh    bool
}

func main() {
	// .env is optional; real deployments set DAYVIEW_FEED_URL directly.
	_ = godotenv.Load()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	if conf.FeedURL == "" {
		appLog.Error("no feed URL configured", errors.New("set feed_url in config or "+config.FeedURLEnv))
		os.Exit(1)
	}

	loc := resolveLocation(conf.Timezone)

	appLog.Info("dayview starting",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"state_dir", conf.StateDir,
		"refresh", conf.RefreshCron,
		"feed", ics.RedactURL(conf.FeedURL),
		"once", flags.once,
	)

	resolver := schedule.NewResolver(schedule.Config{
		Fetcher:  ics.NewFetcher(time.Duration(conf.FetchTimeoutSeconds) * time.Second),
		Cache:    snapshot.NewStore(conf.StateDir),
		FeedURL:  conf.FeedURL,
		Location: loc,
	})

	if flags.once {
		if err := runOnce(resolver, loc, flags); err != nil {
			appLog.Error("resolution failed", err)
			os.Exit(1)
		}
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Cron-driven forced refresh keeps today's snapshot warm so interactive
	// requests normally hit the cache.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		refreshCtx, cancelRefresh := context.WithTimeout(ctx, time.Minute)
		defer cancelRefresh()
		if _, err := resolver.Resolve(refreshCtx, resolver.Today(), true); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, resolver).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("dayview exiting")
}

// runOnce resolves a single day and prints it to stdout.
func runOnce(resolver *schedule.Resolver, loc *time.Location, flags flagConfig) error {
	selected := resolver.Today()
	if flags.date != "" {
		d, err := time.ParseInLocation(snapshot.DateLayout, flags.date, loc)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", flags.date, err)
		}
		selected = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	events, err := resolver.Resolve(ctx, selected, flags.refresh)
	if err != nil {
		return err
	}

	fmt.Printf("Schedule for %s (%s)\n", model.DayStart(selected, loc).Format(snapshot.DateLayout), loc)
	if len(events) == 0 {
		fmt.Println("  (no events)")
		return nil
	}

	now := time.Now()
	for _, ev := range events {
		when := ev.Start.Format("15:04") + "-" + ev.End.Format("15:04")
		if ev.AllDay {
			when = "all day    "
		}
		marker := "  "
		if ev.InProgress(now) {
			marker = "* "
		}
		fmt.Printf("  %s%s  %s\n", marker, when, ev.Summary)
		if ev.Location != "" {
			fmt.Printf("              @ %s\n", ev.Location)
		}
	}
	return nil
}

func resolveLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/dayview/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Resolve one day, print it and exit")
	flag.StringVar(&cfg.date, "date", "", "Day to resolve in -once mode (YYYY-MM-DD, default today)")
	flag.BoolVar(&cfg.refresh, "refresh", false, "Force a fresh fetch even if today's snapshot is valid")

	flag.Parse()

	return cfg
}
