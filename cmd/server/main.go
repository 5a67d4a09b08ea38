package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tokenized/logger"

	"github.com/duovault/tss2p/auth"
	"github.com/duovault/tss2p/scheduler"
	"github.com/duovault/tss2p/session"
	"github.com/duovault/tss2p/storage"
	"github.com/duovault/tss2p/threads"
	"github.com/duovault/tss2p/transport"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	buildUser    = "unknown"
)

func main() {

	// -------------------------------------------------------------------------
	// Logging
	logConfig := logger.NewDevelopmentConfig()
	logConfig.Main.AddFile("./tmp/main.log")
	ctx := logger.ContextWithLogConfig(context.Background(), logConfig)

	// -------------------------------------------------------------------------
	// Config

	var cfg struct {
		Listen  string `default:":8443" envconfig:"LISTEN_ADDRESS"`
		AuthDev bool   `default:"false" envconfig:"AUTH_PASSTHROUGH"`
		Storage struct {
			Region    string `default:"ap-southeast-2" envconfig:"STORAGE_REGION"`
			AccessKey string `envconfig:"STORAGE_ACCESS_KEY"`
			Secret    string `envconfig:"STORAGE_SECRET"`
			Bucket    string `default:"standalone" envconfig:"STORAGE_BUCKET"`
			Root      string `default:"./tmp" envconfig:"STORAGE_ROOT"`
		}
		Reaper struct {
			Frequency time.Duration `default:"30s" envconfig:"REAPER_FREQUENCY"`
		}
	}

	if err := envconfig.Process("Wallet", &cfg); err != nil {
		logger.Fatal(ctx, "Parsing config : %s", err)
	}

	cfgJSON, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		logger.Fatal(ctx, "Marshalling config to JSON : %s", err)
	}

	logger.Info(ctx, "Started : Application Initializing")
	defer log.Println("Completed")

	logger.Info(ctx, "Build %v (%v on %v)", buildVersion, buildUser, buildDate)
	// TODO: Mask sensitive values
	logger.Info(ctx, "Config : %v", string(cfgJSON))

	// -------------------------------------------------------------------------
	// Storage

	storageConfig := storage.NewConfig(cfg.Storage.Bucket, cfg.Storage.Root)

	var backend storage.Storage
	if strings.ToLower(storageConfig.Bucket) == "standalone" {
		backend = storage.NewFilesystemStorage(storageConfig)
	} else {
		backend = storage.NewS3Storage(storageConfig)
	}

	store := session.NewStore(backend)

	// -------------------------------------------------------------------------
	// Auth

	var authenticator auth.Authenticator
	if cfg.AuthDev {
		logger.Warn(ctx, "Running with passthrough auth, never use this in production")
		authenticator = auth.PassthroughAuthenticator{}
	} else {
		// A real deployment supplies a TokenVerifier wired to its identity provider's published
		// keys; there is no safe default here, so passthrough is the only mode this binary can
		// run without one.
		logger.Fatal(ctx, "no TokenVerifier configured; set WALLET_AUTH_PASSTHROUGH=true for dev")
	}

	// -------------------------------------------------------------------------
	// Session reaper

	sch := &scheduler.Scheduler{}
	reaper := session.NewReaper(store)
	if err := sch.ScheduleJob(ctx, scheduler.NewPeriodicTask("session_reaper", reaper,
		cfg.Reaper.Frequency)); err != nil {
		logger.Fatal(ctx, "Scheduling reaper : %s", err)
	}

	schThread := threads.NewThreadWithoutStop("scheduler", sch.Run)
	schComplete := schThread.GetCompleteChannel()
	schThread.Start(ctx)

	// -------------------------------------------------------------------------
	// Server

	server := transport.NewServer(authenticator, store)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server,
	}

	serverThread := threads.NewThreadWithoutStop("http_server", func(ctx context.Context) error {
		logger.Info(ctx, "Listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	serverComplete := serverThread.GetCompleteChannel()
	serverThread.Start(ctx)

	// -------------------------------------------------------------------------
	// Shutdown

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	select {
	case <-serverComplete:
		if err := serverThread.Error(); err != nil {
			logger.Error(ctx, "Server failure : %s", err)
		}

	case sig := <-osSignals:
		logger.Info(ctx, "Received signal : %s, shutting down", sig)

		if err := sch.Stop(ctx); err != nil {
			logger.Error(ctx, "Stopping scheduler : %s", err)
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Shutting down server : %s", err)
		}

		<-schComplete
		<-serverComplete
	}
}
