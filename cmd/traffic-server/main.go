package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/smart-traffic/internal/api"
	"github.com/banshee-data/smart-traffic/internal/capture"
	"github.com/banshee-data/smart-traffic/internal/config"
	"github.com/banshee-data/smart-traffic/internal/healthrpc"
	"github.com/banshee-data/smart-traffic/internal/history"
	"github.com/banshee-data/smart-traffic/internal/lightlink"
	"github.com/banshee-data/smart-traffic/internal/state"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/version"
	"github.com/banshee-data/smart-traffic/internal/web"
)

var (
	configFile  = flag.String("config", "", "Path to JSON config file (defaults are used when empty)")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	devMode     = flag.Bool("dev", false, "Serve the dashboard from disk")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// app holds the long-lived components of the server.
type app struct {
	cfg     *config.Config
	state   *state.Store
	images  *capture.Store
	history *history.Store
	lights  lightlink.Link
	health  *healthrpc.Server // nil when grpc_listen is unset
	handler http.Handler
}

// loadConfig reads path, or returns defaults when path is empty. A
// non-empty listenOverride replaces the configured listen address.
func loadConfig(path, listenOverride string) (*config.Config, error) {
	cfg := config.Empty()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if listenOverride != "" {
		cfg.Listen = &listenOverride
	}
	return cfg, nil
}

func newApp(cfg *config.Config, dev bool) (*app, error) {
	clock := timeutil.RealClock{}
	a := &app{
		cfg:    cfg,
		state:  state.NewStore(clock),
		images: capture.NewStore(nil, cfg.GetCapturedImagesDir(), clock),
	}
	if err := a.images.EnsureDir(); err != nil {
		return nil, err
	}

	var err error
	if a.history, err = history.NewStore(clock, cfg.GetHistoryLimit()); err != nil {
		return nil, fmt.Errorf("failed to create history: %w", err)
	}

	if port := cfg.GetLightsSerialPort(); port != "" {
		link, err := lightlink.Open(port, lightlink.OptionsFromConfig(cfg.LightsSerial), a.state)
		if err != nil {
			a.history.Close()
			return nil, fmt.Errorf("failed to open light controller: %w", err)
		}
		log.Printf("light controller on %s", port)
		a.lights = link
	} else {
		log.Print("no lights_serial_port configured; light controller disabled")
		a.lights = lightlink.NewDisabledLink()
	}

	if addr := cfg.GetGRPCListen(); addr != "" {
		a.health = healthrpc.NewServer(healthrpc.Config{
			ListenAddr:      addr,
			RefreshInterval: cfg.GetHealthRefreshInterval(),
		}, a.state, clock)
	}

	static, err := web.Static(dev)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	mux := api.NewServer(api.Options{
		Store:          a.state,
		Images:         a.images,
		History:        a.history,
		Lights:         a.lights,
		Clock:          clock,
		Static:         static,
		MaxUploadBytes: cfg.GetMaxUploadBytes(),
	}).ServeMux()

	// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
	a.history.AttachAdminRoutes(mux)
	a.lights.AttachAdminRoutes(mux)

	a.handler = api.Handler(mux)
	return a, nil
}

// start brings up the listeners that need no context. On failure every
// component is closed.
func (a *app) start() error {
	log.Printf("saving captured images to %s", a.images.Dir())
	if a.health == nil {
		return nil
	}
	if err := a.health.Start(); err != nil {
		a.close()
		return fmt.Errorf("failed to start gRPC health server: %w", err)
	}
	return nil
}

func (a *app) close() {
	if err := a.lights.Close(); err != nil {
		log.Printf("failed to close light controller: %v", err)
	}
	if err := a.history.Close(); err != nil {
		log.Printf("failed to close history: %v", err)
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configFile, *listen)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := newApp(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	if err := a.start(); err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.close()

	log.Printf("smart-traffic %s", version.String())

	// Create a wait group for the HTTP server, serial monitor, and health routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to read acks and heartbeats from the controller
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.lights.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor light controller: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if a.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.health.Refresh(ctx)
			a.health.Stop()
			log.Print("health routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: a.handler,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
