package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckgen-web/internal/config"
	"deckgen-web/internal/generator"
	"deckgen-web/internal/handler"
	"deckgen-web/internal/service"
	"deckgen-web/internal/theme"
	"deckgen-web/internal/view"
	"deckgen-web/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gotheme "github.com/goliatone/go-theme"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the presentation form web service",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return runServe(configPath)
	},
}

func init() {
	serveCmd.Flags().StringP("config", "c", "./configs/config.yaml", "config file path")
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	selector, err := newSelector(cfg)
	if err != nil {
		return err
	}
	renderer, err := view.NewRenderer(selector)
	if err != nil {
		return err
	}

	client := generator.NewClient(cfg.Generator.Endpoint, cfg.Generator.Timeout,
		generator.WithMaxResponseBytes(cfg.Generator.MaxResponseBytes))
	formService := service.NewFormService(cfg, client)
	formHandler := handler.NewFormHandler(formService, renderer, cfg)

	router := setupRouter(cfg, formHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d, backend %s", cfg.Server.Port, client.Endpoint())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if err := formService.Close(); err != nil {
		logger.Errorf("Failed to close form service: %v", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newSelector(cfg *config.Config) (*theme.Selector, error) {
	var extra []*gotheme.Manifest
	if cfg.Theme.File != "" {
		manifests, err := theme.LoadFile(cfg.Theme.File)
		if err != nil {
			return nil, err
		}
		extra = manifests
	}
	return theme.NewSelector(cfg.Theme.Default, cfg.Theme.Variant, extra...)
}

func setupRouter(cfg *config.Config, formHandler *handler.FormHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	formHandler.Register(router)

	return router
}
