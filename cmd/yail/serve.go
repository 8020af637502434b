package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ironsheep/yail-server/internal/config"
	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
	"github.com/ironsheep/yail-server/internal/mdns"
	"github.com/ironsheep/yail-server/internal/metrics"
	"github.com/ironsheep/yail-server/internal/server"
	"github.com/ironsheep/yail-server/internal/session"
	"github.com/ironsheep/yail-server/internal/source"
)

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"YAIL_CONFIG"},
			Usage:   "path to config.toml (default ~/.yail/config.toml)",
		},
		&cli.StringFlag{
			Name:    "addr",
			EnvVars: []string{"YAIL_ADDR"},
			Usage:   "listen address",
		},
		&cli.StringSliceFlag{
			Name:    "paths",
			Aliases: []string{"p"},
			EnvVars: []string{"YAIL_PATHS"},
			Usage:   "directories or files served by the files command",
		},
		&cli.StringSliceFlag{
			Name:    "extensions",
			EnvVars: []string{"YAIL_EXTENSIONS"},
			Usage:   "file extensions picked up by the directory scan",
		},
		&cli.StringFlag{
			Name:    "loglevel",
			Aliases: []string{"log-level"},
			EnvVars: []string{"YAIL_LOG_LEVEL"},
			Usage:   "debug, info, warn or error",
		},
		&cli.IntFlag{
			Name:    "max-encodes",
			EnvVars: []string{"YAIL_MAX_ENCODES"},
			Usage:   "concurrent conversions (0 = one per CPU)",
		},
		&cli.IntFlag{
			Name:    "max-connections",
			EnvVars: []string{"YAIL_MAX_CONNECTIONS"},
			Usage:   "concurrent clients before new ones get server.busy",
		},
		&cli.StringFlag{
			Name:    "camera-url",
			EnvVars: []string{"YAIL_CAMERA_URL"},
			Usage:   "snapshot URL answering the video command",
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			EnvVars: []string{"YAIL_METRICS_ADDR"},
			Usage:   "serve /metrics and /health on this address",
		},
		&cli.BoolFlag{
			Name:    "mdns",
			EnvVars: []string{"YAIL_MDNS"},
			Usage:   "advertise the server as _yail._tcp",
		},
	}
}

// loadConfig resolves flag > env > file > default.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("paths") {
		cfg.Paths = c.StringSlice("paths")
	}
	if c.IsSet("extensions") {
		cfg.Extensions = c.StringSlice("extensions")
	}
	if c.IsSet("loglevel") {
		cfg.LogLevel = c.String("loglevel")
	}
	if c.IsSet("max-encodes") {
		cfg.MaxEncodes = c.Int("max-encodes")
	}
	if c.IsSet("max-connections") {
		cfg.MaxConnections = c.Int("max-connections")
	}
	if c.IsSet("camera-url") {
		cfg.CameraURL = c.String("camera-url")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("mdns") {
		cfg.MdnsEnabled = c.Bool("mdns")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Info("yail starting", "version", Version, "commit", GitCommit)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := session.New()
	n := source.ScanDirectory(cfg.Paths, cfg.Extensions, state.RecordFilename)
	logger.Info("image files indexed", "count", n, "paths", cfg.Paths)
	go rescanOnHangup(ctx, state, cfg)

	settings := source.NewGenSettings()
	if err := cfg.ApplyGenSettings(settings); err != nil {
		return cli.Exit(err, 1)
	}

	m := metrics.New()
	srv := server.New(state, settings, buildSources(cfg, settings), server.Options{
		MaxConnections:  cfg.MaxConnections,
		MaxEncodes:      cfg.MaxEncodes,
		IdleTimeout:     cfg.IdleTimeout(),
		GenerateTimeout: cfg.GenTimeout(),
		Metrics:         m,
	})

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(m)
		go func() {
			logger.Info("metrics exporter listening", "addr", cfg.MetricsAddr)
			if err := exporter.ListenAndServe(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics exporter failed", "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return cli.Exit(fmt.Errorf("listen on %s: %w", cfg.Addr, err), 1)
	}

	if cfg.MdnsEnabled {
		advertiser := mdns.NewAdvertiser(mdns.Config{Port: ln.Addr().(*net.TCPAddr).Port})
		if err := advertiser.Start(); err != nil {
			logger.Warn("mdns advertisement disabled", "error", err)
		} else {
			defer advertiser.Stop()
			logger.Info("mdns advertisement started", "service", mdns.ServiceType)
		}
	}

	if err := srv.Serve(ctx, ln); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

// buildSources wires the collaborators enabled by cfg. Generators whose API
// key is missing stay nil so the router reports source.not_available.
func buildSources(cfg *config.Config, settings *source.GenSettings) server.Sources {
	var openai, gemini source.Generator
	if cfg.OpenAIAPIKey != "" {
		g := source.NewOpenAIGenerator(cfg.OpenAIAPIKey, settings)
		g.Timeout = cfg.GenTimeout()
		openai = g
	}
	if cfg.GeminiAPIKey != "" {
		g := source.NewGeminiGenerator(cfg.GeminiAPIKey, settings)
		g.Timeout = cfg.GenTimeout()
		gemini = g
	}

	sources := server.Sources{
		Files:     source.NewFileSource(imaging.NewImageCache(imaging.DefaultCacheEntries)),
		URLs:      source.NewURLSource(),
		Generator: &source.ModelRouter{Settings: settings, OpenAI: openai, Gemini: gemini},
		Gemini:    gemini,
		Searcher:  source.NewDuckDuckGoSearcher(),
	}
	if cfg.CameraURL != "" {
		sources.Camera = source.NewSnapshotCamera(cfg.CameraURL)
	}
	return sources
}

// rescanOnHangup rebuilds the file pool every time the process gets SIGHUP.
func rescanOnHangup(ctx context.Context, state *session.State, cfg *config.Config) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n := rescan(state, cfg)
			logger.Info("image files reindexed", "count", n, "paths", cfg.Paths)
		}
	}
}

// rescan scans cfg.Paths again and swaps the result into state in one step.
func rescan(state *session.State, cfg *config.Config) int {
	var found []string
	source.ScanDirectory(cfg.Paths, cfg.Extensions, func(path string) bool {
		found = append(found, path)
		return true
	})
	return state.ReplaceFilenames(found)
}

func runDiscover(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	servers, err := mdns.Discover(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if len(servers) == 0 {
		fmt.Fprintln(c.App.Writer, "no YAIL servers found")
		return nil
	}
	for _, s := range servers {
		fmt.Fprintf(c.App.Writer, "%s\t%s:%d\tversion=%s\tmodes=%v\n", s.Name, s.Host, s.Port, s.Version, s.Modes)
	}
	return nil
}
