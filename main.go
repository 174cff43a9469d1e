package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dow_tracker_backend/config"
	"dow_tracker_backend/controllers"
	"dow_tracker_backend/feed"
	"dow_tracker_backend/logging"
	"dow_tracker_backend/routes"
	"dow_tracker_backend/scheduler"
	"dow_tracker_backend/services/archive"
	"dow_tracker_backend/services/notify"
	"dow_tracker_backend/services/snapshot"
	"dow_tracker_backend/services/workbook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	log.Println("==============================================")
	log.Println("  DOW 30 Tracker - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	logger := logging.SetupLogger(cfg.LogFile, cfg.Environment)
	defer logger.Sync()

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Workbook store owns the per-day spreadsheets
	store, err := workbook.NewStore(cfg.SheetDir, cfg.Basket, cfg.Slots, logger)
	if err != nil {
		logger.Fatalw("Failed to create workbook store", "error", err)
	}
	if err := store.Ensure(time.Now()); err != nil {
		logger.Errorw("Failed to create today's workbook", "error", err)
	}

	// Sample archive is best-effort; the workbook stays the source of truth
	var arch *archive.Store
	if arch, err = archive.Open(cfg.ArchivePath, logger); err != nil {
		logger.Warnw("Archive unavailable, continuing without it", "error", err)
		arch = nil
	} else {
		defer arch.Close()
	}

	// Notification hub for the presentation layer
	hub := notify.NewHub(logger)
	go hub.Run()

	snapshots := snapshot.NewService(snapshot.Params{
		Basket:   cfg.Basket,
		Slots:    cfg.Slots,
		Workers:  cfg.FetchWorkers,
		Primary:  feed.NewYahooChartFeed(cfg.HTTPTimeout),
		Fallback: feed.NewYahooQuoteFeed(cfg.HTTPTimeout),
		Store:    store,
		Archive:  arch,
		Hub:      hub,
		Log:      logger,
	})

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(logger))

	setupHealthEndpoints(router, store)

	gridController := controllers.NewGridController(store, snapshots, arch, hub, cfg.Slots, cfg.Basket, logger)
	routes.SetupRoutes(router, gridController)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		logger.Infow("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("Server error", "error", err)
		}
	}()

	// Scheduler: recurring slot triggers plus startup back-fill of the
	// hours that already passed today
	entries := scheduler.BuildEntries(cfg.Slots, snapshots, store, logger)
	jobScheduler := scheduler.New(entries, scheduler.SystemClock{}, logger)
	jobScheduler.Start()

	go func() {
		n := scheduler.RunStartupBackfill(context.Background(), time.Now(), cfg.Slots, snapshots, logger)
		logger.Infow("Startup back-fill complete", "slots", n)
	}()

	gracefulShutdown(server, jobScheduler, hub, logger)
}

// setupHealthEndpoints registers liveness and readiness probes.
func setupHealthEndpoints(router *gin.Engine, store *workbook.Store) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "DOW 30 Tracker API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness probe - ready once today's workbook can be served
	router.GET("/ready", func(c *gin.Context) {
		if err := store.Ensure(time.Now()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Workbook store unavailable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Requested-With")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			logger.Infow("Request",
				"method", c.Request.Method,
				"path", path,
				"status", c.Writer.Status(),
				"duration", duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *notify.Hub, logger *zap.SugaredLogger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Infow("Received signal, shutting down gracefully", "signal", sig.String())

	// Stop background work first so no merge is in flight mid-shutdown
	jobScheduler.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorw("Server forced to shutdown", "error", err)
	}

	logger.Info("Server shutdown completed")
}
