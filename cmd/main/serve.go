package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maecare/airouter/src/cache"
	"github.com/maecare/airouter/src/chat"
	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/handlers"
	"github.com/maecare/airouter/src/inference"
	"github.com/maecare/airouter/src/middleware"
	"github.com/maecare/airouter/src/router"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the cache sweeper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "override server.port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	redisClient, err := chat.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("redis connected", "address", cfg.Redis.Address)

	credentials := config.NewCredentials(&cfg.Providers)
	registry, err := inference.NewRegistryFromConfig(ctx, &cfg.Providers, credentials, logger)
	if err != nil {
		return err
	}
	if len(registry.Providers()) == 0 {
		logger.Warn("no AI provider credentials configured, chat requests will fail with 503")
	}

	queryRouter := router.NewQueryRouter(credentials, a.flags, a.metrics, logger)
	sessions := chat.NewSessionStore(redisClient, cfg.Redis.HistoryTTL)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newEngine(a, queryRouter, registry, sessions),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "port", cfg.Server.Port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewSweeper(a.cache, cfg.Cache.SweepInterval, logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}

	logger.Info("server exited")
	return nil
}

func newEngine(a *app, queryRouter *router.QueryRouter, registry *inference.Registry, sessions *chat.SessionStore) *gin.Engine {
	if cfg.Server.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret not set, trusting X-User-ID header")
	}
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	chatHandler := handlers.NewChatHandler(queryRouter, registry, a.cache, a.flags, sessions, a.metrics, logger)
	routeHandler := handlers.NewRouteHandler(queryRouter, registry)
	flagsHandler := handlers.NewFlagsHandler(a.flags)
	adminHandler := handlers.NewAdminHandler(a.cache, a.flags, logger)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(a.metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", routeHandler.HealthCheck)

		protected := v1.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.POST("/route", routeHandler.HandleRoute)
			protected.POST("/chat", chatHandler.HandleChat)
			protected.GET("/conversations/:id", chatHandler.GetConversation)
			protected.DELETE("/conversations/:id", chatHandler.DeleteConversation)
			protected.GET("/flags", flagsHandler.GetFlags)
			protected.PATCH("/flags", flagsHandler.UpdateFlags)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(cfg.Auth.AdminKey))
		{
			admin.POST("/flags/:user_id/group", adminHandler.AssignGroup)
			admin.GET("/flags/distribution", adminHandler.Distribution)
			admin.GET("/cache/stats", adminHandler.CacheStats)
			admin.POST("/cache/sweep", adminHandler.SweepCache)
			admin.DELETE("/cache/:provider", adminHandler.ClearProvider)
		}
	}

	return r
}
