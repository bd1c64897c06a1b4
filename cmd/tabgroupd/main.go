package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stnma7e/bookmarktabgroups/internal/bookmarkfile"
	"github.com/stnma7e/bookmarktabgroups/internal/bridge"
	"github.com/stnma7e/bookmarktabgroups/internal/config"
	"github.com/stnma7e/bookmarktabgroups/internal/engine"
	"github.com/stnma7e/bookmarktabgroups/internal/httpapi"
)

func main() {
	configPath := flag.String("config", strings.TrimSpace(os.Getenv("TABGROUPS_CONFIG")), "config file path (defaults to XDG config dir)")
	listen := flag.String("listen", "", "listen address (overrides config)")
	once := flag.Bool("once", false, "run one event pump cycle and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := engine.BuildStateBackendFromDSN(cfg.StateDSN)
	if err != nil {
		log.Fatalf("failed to initialize state backend: %v", err)
	}
	defer closeIfCloser(state)

	client := bridge.NewClient(cfg.Bridge.BaseURL, cfg.Bridge.Token, &http.Client{Timeout: 15 * time.Second})

	var bookmarks engine.BookmarkStore = client
	var fileStore *bookmarkfile.Store
	if cfg.BookmarkFile != "" {
		fileStore, err = bookmarkfile.Open(cfg.BookmarkFile)
		if err != nil {
			log.Fatalf("failed to open bookmark file: %v", err)
		}
		bookmarks = fileStore
	}

	hub := httpapi.NewEventHub()
	eng, err := engine.New(rootCtx, engine.Options{
		Tabs:      client,
		Bookmarks: bookmarks,
		State:     state,
		Logger:    log.Default(),
		OnEvent:   hub.Publish,
	})
	if err != nil {
		log.Fatalf("failed to initialize engine: %v", err)
	}
	defer eng.Close()

	if fileStore != nil {
		watcher := bookmarkfile.NewWatcher(fileStore,
			bookmarkfile.WithDebounce(cfg.Debounce),
			bookmarkfile.WithOnEvent(func(ev engine.BookmarkEvent) {
				if err := eng.HandleBookmarkEvent(rootCtx, ev); err != nil {
					log.Printf("bookmark event failed: %v", err)
				}
			}),
			bookmarkfile.WithOnError(func(err error) {
				log.Printf("bookmark watcher: %v", err)
			}),
		)
		if err := watcher.Start(); err != nil {
			log.Fatalf("failed to start bookmark watcher: %v", err)
		}
		defer watcher.Stop()
	}

	pump := bridge.NewPump(client, eng, bridge.PumpOptions{
		Interval: cfg.Poll.Interval,
		Jitter:   cfg.Poll.Jitter,
		Limit:    cfg.Poll.Limit,
		Logger:   log.Default(),
	})
	if *once {
		if err := pump.PumpOnce(rootCtx); err != nil {
			log.Fatalf("event pump cycle failed: %v", err)
		}
		return
	}
	go pump.Run(rootCtx)

	apiServer, err := httpapi.NewServerWithConfig(eng, hub, httpapi.ServerConfig{
		Token: cfg.Token,
	})
	if err != nil {
		log.Fatalf("failed to initialize API server: %v", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: apiServer,
	}
	go func() {
		<-rootCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("tabgroupd listening on %s", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func closeIfCloser(state engine.StateBackend) {
	if closer, ok := state.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("state backend close: %v", err)
		}
	}
}
