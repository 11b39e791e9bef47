package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"blocktimeline/internal/capture"
	"blocktimeline/internal/config"
	"blocktimeline/internal/feed"
	appLog "blocktimeline/internal/log"
	"blocktimeline/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	blocksURL  string
	once       bool
	snapshot   bool
}

func main() {
	flags := parseFlags()

	config.LoadDotEnv(flags.envFile)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI flags override config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.blocksURL != "" {
		conf.BlocksURL = flags.blocksURL
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("blocktimeline starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"blocks_url", conf.BlocksURL,
		"descriptions_url", conf.DescriptionsURL,
		"refresh", conf.RefreshCron,
		"extension_months", conf.ExtensionMonths,
		"snapshot", conf.Snapshot.Enabled,
		"once", flags.once,
	)

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

	server := web.NewServer(conf, web.FeedLoader(conf, feed.NewFetcher(conf.CacheDir)))

	if flags.once {
		code := runOnce(ctx, server)
		appLog.Sync()
		os.Exit(code)
	}

	if flags.snapshot {
		if err := runSnapshot(ctx, conf); err != nil {
			os.Exit(1)
		}
		return
	}

	// A failed first load is not fatal: the API answers 503 until a
	// scheduled reload succeeds.
	_ = server.Reload(ctx)

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := server.Reload(ctx); err != nil {
			return
		}
		if conf.Snapshot.Enabled {
			_ = runSnapshot(ctx, conf)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	if err := server.StartServer(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
	}

	// Wait for a running reload to finish before exiting.
	<-c.Stop().Done()
	appLog.Info("blocktimeline exiting")
}

// runOnce loads the inputs, writes the timeline JSON to stdout and returns
// the process exit code.
func runOnce(ctx context.Context, server *web.Server) int {
	if err := server.Reload(ctx); err != nil {
		return 1
	}
	snap, err := server.Current()
	if err != nil {
		appLog.Error("no timeline after reload", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"segments": snap.Dataset.Segments,
		"days":     snap.Dataset.Days,
		"programs": snap.Dataset.Programs,
	}); err != nil {
		appLog.Error("failed to write timeline", err)
		return 1
	}
	return 0
}

func runSnapshot(ctx context.Context, conf *config.Config) error {
	start := time.Now()
	err := capture.CaptureTimelinePNG(ctx, capture.Options{
		URL:        conf.Snapshot.URL,
		OutputPath: conf.Snapshot.Output,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
	if err != nil {
		appLog.Error("timeline snapshot failed", err, "url", conf.Snapshot.URL)
		return err
	}
	appLog.Info("timeline snapshot written", "output", conf.Snapshot.Output, "took", time.Since(start).String())
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/blocktimeline/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional dotenv file with BLOCKTIMELINE_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.blocksURL, "blocks", "", "blocks.json URL or path (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load once, print the timeline JSON to stdout and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Capture one PNG of the renderer page and exit")

	flag.Parse()

	return cfg
}
