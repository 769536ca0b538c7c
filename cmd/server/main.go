package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/caremesh/intake/internal/api"
	"github.com/caremesh/intake/internal/audit"
	"github.com/caremesh/intake/internal/config"
	"github.com/caremesh/intake/internal/intake"
	"github.com/caremesh/intake/internal/platform"
	"github.com/caremesh/intake/internal/preview"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// auditPruneInterval is how often old audit events are purged.
const auditPruneInterval = time.Hour

func main() {
	configPath := flag.String("config", "intake.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Preview storage
	previews, err := preview.NewStore(cfg.Storage.PreviewsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize preview store: %v\n", err)
		os.Exit(1)
	}

	// Audit log
	auditLog, err := audit.Open(cfg.Storage.AuditDirectory)
	if err != nil {
		fmt.Printf("Failed to open audit log: %v\n", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	// Background audit pruning
	go func() {
		ticker := time.NewTicker(auditPruneInterval)
		defer ticker.Stop()
		for range ticker.C {
			maxAge := time.Duration(cfg.Storage.AuditMaxAgeDays) * 24 * time.Hour
			if err := auditLog.Prune(maxAge); err != nil {
				fmt.Printf("Warning: failed to prune audit log: %v\n", err)
			}
		}
	}()

	// Platform API client
	client, err := platform.NewClient(platform.Config{
		BaseURL:            cfg.PlatformAPI.BaseURL,
		SessionCookieName:  cfg.PlatformAPI.SessionCookieName,
		SessionCookieValue: cfg.PlatformAPI.SessionCookieValue,
		Timeout:            cfg.PlatformTimeout(),
	})
	if err != nil {
		fmt.Printf("Failed to create platform client: %v\n", err)
		os.Exit(1)
	}

	// Intake pipeline
	registry := intake.NewRegistry(cfg.Intake.Slots, previews)
	defer registry.Close()
	orchestrator := intake.NewOrchestrator(registry, client, previews, cfg.Rules(), auditLog)
	gate := intake.NewGate(registry, client, auditLog)

	handlers := api.NewHandlers(&api.Dependencies{
		Registry:     registry,
		Orchestrator: orchestrator,
		Gate:         gate,
		History:      auditLog,
		PreviewDir:   previews.Dir(),
		Version:      Version,
	})

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/status")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}

	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("CareMesh Credential Intake %s (built %s)\n", Version, BuildTime)
	fmt.Printf("Config:   %s\n", *configPath)
	fmt.Printf("Platform: %s\n", cfg.PlatformAPI.BaseURL)
	fmt.Printf("Listen:   http://%s\n", cfg.GetServerAddr())

	e.Logger.Fatal(e.StartServer(s))
}
