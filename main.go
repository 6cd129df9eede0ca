package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgesentinel/alertgate/internal/alert"
	"github.com/edgesentinel/alertgate/internal/api"
	"github.com/edgesentinel/alertgate/internal/capture"
	"github.com/edgesentinel/alertgate/internal/config"
	"github.com/edgesentinel/alertgate/internal/detect"
	"github.com/edgesentinel/alertgate/internal/events"
	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/notify"
	"github.com/edgesentinel/alertgate/internal/pipeline"
	"github.com/edgesentinel/alertgate/internal/roi"
	"github.com/edgesentinel/alertgate/internal/snapshot"
	"github.com/edgesentinel/alertgate/internal/stats"
	"github.com/edgesentinel/alertgate/internal/version"
	"github.com/edgesentinel/alertgate/internal/video"
	"github.com/edgesentinel/alertgate/internal/vote"
)

var (
	configPath = flag.String("config", "config/config.yaml", "Path to YAML config file")
	devMode    = flag.Bool("dev", false, "Run in dev mode with a synthetic camera")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
)

// Main
func main() {
	flag.Parse()
	log.Printf("alertgate %s starting", version.Version)

	var cfg *config.Config
	if *devMode {
		cfg = config.Default()
		cfg.Camera.URL = "synthetic://640x480?fps=15"
		cfg.Detection.Enabled = false
		cfg.Alerts.Enabled = false
	} else {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	addr := cfg.ListenAddr()
	if *listen != "" {
		addr = *listen
	}

	source, err := video.Open(cfg.Camera.URL)
	if err != nil {
		log.Fatalf("failed to open camera: %v", err)
	}

	store, err := events.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open event store: %v", err)
	}
	defer store.Close()

	if pruned, err := store.PruneOlderThan(cfg.Database.RetentionDays); err != nil {
		log.Printf("event retention prune failed: %v", err)
	} else if pruned > 0 {
		log.Printf("pruned %d events older than %d days", pruned, cfg.Database.RetentionDays)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Alerts.Enabled {
		tg, err := notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, nil)
		if err != nil {
			log.Fatalf("failed to configure telegram notifier: %v", err)
		}
		notifier = tg
	}

	var detector detect.Detector = detect.Func(
		func(context.Context, *video.Frame) ([]detect.Detection, error) { return nil, nil })
	if cfg.Detection.Enabled {
		detector = detect.NewHTTPClient(detect.HTTPClientConfig{
			Endpoint:      cfg.Detection.Endpoint,
			Confidence:    cfg.Detection.Confidence,
			TargetClasses: cfg.Detection.TargetClasses,
			Timeout:       cfg.DetectionTimeout(),
		}, nil)
	}

	zones, err := roi.NewFilter(cfg.ROIConfig())
	if err != nil {
		log.Fatalf("invalid roi config: %v", err)
	}

	slot := capture.NewFrameSlot()
	worker := capture.NewWorker(source, slot, cfg.ReconnectBackoff())
	gate := motion.NewGate(cfg.MotionParams())
	voter := vote.NewVoter(cfg.VoteParams())
	tracker := stats.NewTracker(nil)
	publisher := stats.NewPublisher()
	defer publisher.Close()

	dispatcher := alert.NewDispatcher(2, 16)
	coordinator := alert.NewCoordinator(alert.Config{
		Policy:     cfg.CooldownPolicy(),
		Dispatcher: dispatcher,
		Snapshots:  snapshot.NewWriter(cfg.Recording.SnapshotsDir, cfg.Recording.JPEGQuality, nil),
		SaveImages: cfg.Alerts.SendImage,
		Notifier:   notifier,
		Store:      store,
		Publisher:  publisher,
		Tracker:    tracker,
	})

	pipe := pipeline.New(pipeline.Params{
		DetectionEnabled: cfg.Detection.Enabled,
		SkipWhenNoMotion: cfg.SkipWhenNoMotion(),
		PeriodicInterval: cfg.Motion.PeriodicInterval,
	}, pipeline.Deps{
		Slot:        slot,
		Gate:        gate,
		Detector:    detector,
		Zones:       zones,
		Voter:       voter,
		Coordinator: coordinator,
		Tracker:     tracker,
		Publisher:   publisher,
	})

	// Create a wait group for the capture, pipeline and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the capture worker to keep the frame slot fresh
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			// Startup connect failure is terminal: nothing downstream can
			// run without frames.
			log.Fatalf("capture worker failed: %v", err)
		}
		log.Print("capture routine terminated")
	}()

	// run the pipeline tick loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("pipeline terminated: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	// HTTP server goroutine
	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := api.NewServer(tracker, publisher, store).ServeMux()
			server := &http.Server{
				Addr:    addr,
				Handler: api.LoggingMiddleware(mux),
			}

			// Start server in a goroutine so it doesn't block
			go func() {
				log.Printf("HTTP server listening on %s", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()

			// Wait for context cancellation to shut down server
			<-ctx.Done()
			log.Println("shutting down HTTP server...")

			// Create a shutdown context with a timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}

			log.Printf("HTTP server routine stopped")
		}()
	}

	// Wait for all goroutines to finish, then drain any queued alerts
	wg.Wait()
	dispatcher.Close(10 * time.Second)
	log.Printf("Graceful shutdown complete")
}
