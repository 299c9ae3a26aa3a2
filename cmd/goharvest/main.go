package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath     string
		catalogPath    string
		outputDir      string
		date           string
		storageState   string
		headless       bool
		slowMo         time.Duration
		proxyServer    string
		proxyUsername  string
		proxyPassword  string
		minTextLength  int
		rateWait       time.Duration
		maxAttempts    int
		attachPDF      bool
		interEnable    bool
		interHost      string
		interPort      int
		interSites     string
		interSaveDir   string
		interLogDir    string
		verbose        bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("GOHARVEST_CONFIG"), "Optional YAML/JSON config file; flags take precedence")
	flag.StringVar(&catalogPath, "catalog", "catalog.json", "Path to the publication catalog JSON")
	flag.StringVar(&outputDir, "output", "fulltext", "Directory to write extracted texts under <output>/<date>/")
	flag.StringVar(&date, "date", os.Getenv("HARVEST_DATE"), "Run date label (YYYY-MM-DD); defaults to today")
	flag.StringVar(&storageState, "session.storageState", os.Getenv("STORAGE_STATE"), "Path to the authenticated storage state JSON")
	flag.BoolVar(&headless, "session.headless", true, "Run the rendering browser headless")
	flag.DurationVar(&slowMo, "session.slowMo", 0, "Per-action delay in the rendering browser (e.g. 250ms)")
	flag.StringVar(&proxyServer, "proxy.server", os.Getenv("PROXY_SERVER"), "Proxy server URL for browser and HTTP traffic")
	flag.StringVar(&proxyUsername, "proxy.username", os.Getenv("PROXY_USERNAME"), "Proxy username")
	flag.StringVar(&proxyPassword, "proxy.password", os.Getenv("PROXY_PASSWORD"), "Proxy password")
	flag.IntVar(&minTextLength, "extract.minTextLength", 400, "Minimum rune count for a rendered extraction to count")
	flag.DurationVar(&rateWait, "extract.rateWait", 2*time.Second, "Pacing delay between entries")
	flag.IntVar(&maxAttempts, "extract.maxAttempts", 2, "Attempts per entry before recording failure")
	flag.BoolVar(&attachPDF, "extract.attachPDF", false, "Also fetch the original PDF next to a successful HTML extraction")
	flag.BoolVar(&interEnable, "interactive.enable", false, "Enable the remote-debugging browser fallback tier")
	flag.StringVar(&interHost, "interactive.host", envOr("DEVTOOLS_HOST", "127.0.0.1"), "DevTools host of the already-running browser")
	flag.IntVar(&interPort, "interactive.port", envIntOr("DEVTOOLS_PORT", 9222), "DevTools port of the already-running browser")
	flag.StringVar(&interSites, "interactive.sites", os.Getenv("SITE_CONFIGS"), "Path to the per-site selector config JSON")
	flag.StringVar(&interSaveDir, "interactive.saveDir", "downloads", "Directory for interactive capture artifacts")
	flag.StringVar(&interLogDir, "interactive.logDir", "logs/interactive", "Directory for interactive audit logs")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		CatalogPath:        catalogPath,
		OutputDir:          outputDir,
		Date:               date,
		StorageStatePath:   storageState,
		Headless:           headless,
		SlowMo:             slowMo,
		ProxyServer:        proxyServer,
		ProxyUsername:      proxyUsername,
		ProxyPassword:      proxyPassword,
		MinTextLength:      minTextLength,
		RateWait:           rateWait,
		MaxAttempts:        maxAttempts,
		AttachPDF:          attachPDF,
		InteractiveEnable:  interEnable,
		InteractiveHost:    interHost,
		InteractivePort:    interPort,
		SiteConfigPath:     interSites,
		InteractiveSaveDir: interSaveDir,
		InteractiveLogDir:  interLogDir,
		Verbose:            verbose,
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("config", configPath).Msg("config file load failed")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		if errors.Is(err, app.ErrNoDocuments) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfg app.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
