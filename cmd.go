package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/config"
	"github.com/jaswantjat/field-service-os/middleware"
	"github.com/jaswantjat/field-service-os/models"
	"github.com/jaswantjat/field-service-os/seed"
	"github.com/jaswantjat/field-service-os/services"
)

var version = "0.1.0"

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:   "fieldops",
	Short: "Field Service OS - dispatch API for installation crews",
	Long: `Field Service OS tracks service orders, offers time slots to
subcontractors, records job completions and reports dispatch analytics.

Configuration is read from the environment and from .env.<GO_ENV> or .env.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(db)

		if servePort != "" {
			cfg.Port = servePort
		}
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var photos services.PhotoService
		if cfg.PhotoStorageEnabled() {
			s3Service, err := services.NewS3Service(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize photo storage: %w", err)
			}
			photos = services.NewPhotoService(db, s3Service)
			log.Printf("Photo storage enabled (bucket=%s)", cfg.AWSS3Bucket)
		} else {
			log.Println("AWS_S3_BUCKET not set, photo uploads are disabled")
		}

		var auth gin.HandlerFunc
		if cfg.AuthEnabled() {
			auth, err = middleware.EnsureValidToken(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize authentication: %w", err)
			}
			log.Printf("JWT authentication enabled (domain=%s)", cfg.Auth0Domain)
		} else {
			log.Println("AUTH0_DOMAIN not set, API is unauthenticated")
		}

		server := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           setupRouter(cfg, db, photos, auth),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server is running on http://localhost:%s", cfg.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Println("Server stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openStore()
		if err != nil {
			return err
		}
		closeStore(db)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo subcontractors, orders and time slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(db)

		result, err := seed.Run(cmd.Context(), db)
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d subcontractors, %d orders, %d time slots, %d events (%d subcontractors already present)\n",
			result.Subcontractors, result.Orders, result.TimeSlots, result.Events, result.Skipped)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides PORT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// openStore loads configuration, connects and migrates the schema
func openStore() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		closeStore(db)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("Database migration completed successfully")
	return cfg, db, nil
}

func closeStore(db *gorm.DB) {
	if err := config.CloseDatabase(db); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
}
