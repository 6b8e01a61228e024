package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/nearby/internal/config"
	"github.com/HammerMeetNail/nearby/internal/database"
	"github.com/HammerMeetNail/nearby/internal/handlers"
	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/middleware"
	"github.com/HammerMeetNail/nearby/internal/presence"
	"github.com/HammerMeetNail/nearby/internal/realtime"
	"github.com/HammerMeetNail/nearby/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logging.SetDefaultLevel(level)
	logger := logging.New().SetLevel(level)

	logger.Info("Starting nearby server...", map[string]interface{}{
		"env": cfg.Server.Environment,
	})

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	version, err := database.RunMigrations(cfg.Database.DSN(), cfg.Server.MigrationsPath)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("Migrations completed", map[string]interface{}{"version": version})

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	// Presence and fan-out
	registry := presence.NewRegistry(
		presence.WithOfflineDebounce(cfg.Presence.OfflineDebounce),
		presence.WithMirror(presence.NewRedisStatusMirror(redisAdapter, cfg.Redis.PresenceTTL), cfg.Redis.PresenceTTL/2),
		presence.WithLogger(logger.WithField("component", "presence")),
	)
	defer registry.Stop()
	hub := realtime.NewHub(registry)

	// Initialize services
	spatialIndex := services.NewRedisSpatialIndex(redisAdapter, cfg.Redis.GeoKey)
	blockService := services.NewBlockService(dbAdapter)
	privacyService := services.NewPrivacyService(dbAdapter)
	conversationService := services.NewConversationService(dbAdapter)
	locationService := services.NewLocationService(registry, spatialIndex)
	nearbyService := services.NewNearbyService(
		registry, spatialIndex, blockService, privacyService,
		cfg.Nearby.DefaultRadiusMeters, cfg.Nearby.MaxRadiusMeters,
	)
	pingService := services.NewPingService(
		services.NewPostgresPingStore(dbAdapter), blockService, hub, conversationService, cfg.Ping.TTL,
	)
	tokenVerifier := services.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; every authenticated request will be rejected")
	}

	gateway := realtime.NewGateway(registry, hub, locationService, pingService, conversationService, realtime.ClientConfig{
		SendQueueSize:   cfg.Realtime.SendQueueSize,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		PongWait:        cfg.Realtime.PongWait,
		PingInterval:    cfg.Realtime.PingInterval(),
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
	})

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB, func() map[string]int {
		return map[string]int{
			"online_users": registry.OnlineCount(),
			"connections":  gateway.ActiveConnections(),
		}
	})
	nearbyHandler := handlers.NewNearbyHandler(nearbyService)
	locationHandler := handlers.NewLocationHandler(locationService)
	pingHandler := handlers.NewPingHandler(pingService)
	socketHandler := handlers.NewSocketHandler(gateway, cfg.Server.AllowedOrigins)

	// Initialize middleware
	secure := cfg.Server.Environment == "production"
	authMiddleware := middleware.NewAuthMiddleware(tokenVerifier)
	securityHeaders := middleware.NewSecurityHeaders(secure)
	requestLogger := middleware.NewRequestLogger(logger)
	nearbyRateLimiter := middleware.NewRateLimiter(
		middleware.NewRedisWindowCounter(redisDB.Client),
		cfg.Nearby.RateLimit, cfg.Nearby.RateWindow,
		"ratelimit:nearby:", middleware.UserOrIPKey, true,
	)
	requireAuth := authMiddleware.RequireAuth

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Discovery
	mux.Handle("GET /api/nearby", requireAuth(nearbyRateLimiter.Middleware(http.HandlerFunc(nearbyHandler.List))))
	mux.Handle("PUT /api/location", requireAuth(http.HandlerFunc(locationHandler.Update)))

	// Pings
	mux.Handle("GET /api/pings", requireAuth(http.HandlerFunc(pingHandler.List)))
	mux.Handle("POST /api/pings", requireAuth(http.HandlerFunc(pingHandler.Send)))
	mux.Handle("PUT /api/pings/{id}/respond", requireAuth(http.HandlerFunc(pingHandler.Respond)))
	mux.Handle("DELETE /api/pings/{id}", requireAuth(http.HandlerFunc(pingHandler.Cancel)))

	// Realtime
	mux.Handle("GET /ws", requireAuth(http.HandlerFunc(socketHandler.Connect)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = requestLogger.Apply(handler)
	handler = authMiddleware.Authenticate(handler)
	handler = securityHeaders.Apply(handler)

	// Expire stale pings in the background
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	if cfg.Ping.SweepInterval > 0 {
		go pingService.RunExpirySweeper(janitorCtx, cfg.Ping.SweepInterval)
	}

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		stopJanitor()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		if err := gateway.Close(ctx); err != nil {
			logger.Warn("Websocket sessions did not drain", map[string]interface{}{
				"error": err.Error(),
			})
		}

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
