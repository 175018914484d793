package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"vibeverse/internal/api"
	"vibeverse/internal/config"
	"vibeverse/internal/eventlog"
	"vibeverse/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🌀 ================================")
	log.Println("🌀  VIBEVERSE - PORTAL HOST")
	log.Println("🌀  Portals, warp tunnel, avatars")
	log.Println("🌀 ================================")

	appConfig := config.Load()
	serverCfg := appConfig.Server

	opts, err := appConfig.PortalOptions()
	if err != nil {
		log.Fatalf("❌ Portal options: %v", err)
	}
	if appConfig.Portal.OptionsFile != "" {
		log.Printf("📄 Portal options: %s", appConfig.Portal.OptionsFile)
	}

	log.Printf("🌐 Page URL: %s", appConfig.Page.URL)
	log.Printf("🎞️ Config: %d FPS, asset cache %d, preview %dx%d",
		appConfig.Frame.FPS, appConfig.Avatar.CacheSize,
		appConfig.Render.PreviewWidth, appConfig.Render.PreviewHeight)

	// Start event log. Keep the interfaces nil when it is disabled.
	var (
		sink   eventlog.Sink
		events api.EventStatsSource
		evLog  *eventlog.Log
	)
	if path := appConfig.EventLog.Path; path != "" {
		evLog = eventlog.New()
		if err := evLog.Start(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
			evLog = nil
		} else {
			log.Printf("📝 Event log: %s", path)
			sink = evLog
			events = evLog
		}
	}

	sess, err := session.New(context.Background(), session.Config{
		FPS:            appConfig.Frame.FPS,
		PageURL:        appConfig.Page.URL,
		PreloadFetch:   appConfig.Page.PreloadFetch,
		FontPath:       appConfig.Render.FontPath,
		AssetCacheSize: appConfig.Avatar.CacheSize,
		Options:        opts,
	}, sink)
	if err != nil {
		log.Fatalf("❌ Session: %v", err)
	}
	sess.Start()

	if snap := sess.Snapshot(); snap != nil {
		log.Printf("🚪 %d portal(s), vibeverse=%v, username=%q", len(snap.Portals), snap.IsVibeverse, snap.Username)
	}

	// Start debug server
	if !serverCfg.DisableDebug {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	server := api.NewServer(sess, api.ServerConfig{
		Events:        events,
		CORSOrigins:   serverCfg.CORSOrigins,
		PreviewWidth:  appConfig.Render.PreviewWidth,
		PreviewHeight: appConfig.Render.PreviewHeight,
	})

	go func() {
		if err := server.Start(":" + strconv.Itoa(serverCfg.Port)); err != nil {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
	sess.Stop()
	if evLog != nil {
		evLog.Stop()
	}

	log.Println("👋 Goodbye!")
}
