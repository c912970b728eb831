package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/HarikaMhae/claude-terminal-panel/internal/classify"
	"github.com/HarikaMhae/claude-terminal-panel/internal/config"
	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
	"github.com/HarikaMhae/claude-terminal-panel/internal/statedb"
	"github.com/HarikaMhae/claude-terminal-panel/internal/web"
)

const Version = "0.3.1"

func main() {
	var (
		addrFlag    = flag.String("addr", "", "listen address (overrides config)")
		configFlag  = flag.String("config", "", "path to config.toml")
		debugFlag   = flag.Bool("debug", false, "enable debug logging")
		versionFlag = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("claude-terminal-panel v%s\n", Version)
		return
	}

	if err := run(*addrFlag, *configFlag, *debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "claude-terminal-panel: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, configPath string, debug bool) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	dataDir := filepath.Dir(configPath)

	level := cfg.Logs.Level
	if debug {
		level = "debug"
	}
	format := "json"
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = "text"
	}
	logging.Init(logging.Config{
		LogDir:     dataDir,
		Level:      level,
		Format:     format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
	})
	defer logging.Shutdown()

	db, err := statedb.Open(filepath.Join(dataDir, "panel.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	if rows, err := db.List(); err == nil && len(rows) > 0 {
		// Sessions from a previous run; their processes died with the panel.
		logging.Logger().Info("previous_session_records", "count", len(rows))
	}

	srv := web.NewServer(web.Config{
		ListenAddr: cfg.Server.Addr,
		Token:      cfg.Server.AuthToken,
		Session:    cfg.Session,
		Detection:  detectionOptions(cfg),
		DB:         db,
	})

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		srv.ApplyDetection(detectionOptions(next))
	})
	if err != nil {
		logging.Logger().Warn("config_watcher_disabled", "error", err.Error())
	} else {
		go watcher.Start()
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func detectionOptions(cfg *config.Config) classify.Options {
	return classify.Options{
		Enabled:        cfg.DetectionEnabled(),
		ShowDelay:      cfg.ShowDelay(),
		CustomPatterns: cfg.Detection.CustomPatterns,
		BufferCapacity: cfg.Detection.BufferCapacity,
	}
}
