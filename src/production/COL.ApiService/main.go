package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	consumer "gitlab.com/apiario/colmeia.server/src/production/COL.AlertConsumer"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/controllers"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/health"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/implementation/colmeia"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/middleware"
	container "gitlab.com/apiario/colmeia.server/src/production/COL.Container"
	implementation "gitlab.com/apiario/colmeia.server/src/production/COL.Repository/Implementation"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize container: %v\n", err)
		os.Exit(1)
	}

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Info("Starting colmeia API service")

	exitCode := 0
	defer func() {
		if err := ctr.Shutdown(); err != nil {
			exitCode = 1
		}
		os.Exit(exitCode)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	startupCtx, cancel := context.WithTimeout(ctx, config.Mongo.ConnectTimeout)
	defer cancel()

	collection, err := ctr.GetColmeiaCollection(startupCtx)
	if err != nil {
		logger.ErrorWithError(err, "Failed to connect to MongoDB")
		exitCode = 1
		return
	}
	mongoClient, _ := ctr.GetMongoClient(startupCtx)

	colmeiaRepo := implementation.NewMongoColmeiaRepository(collection)
	if err := colmeiaRepo.EnsureIndexes(startupCtx); err != nil {
		logger.ErrorWithError(fmt.Errorf("%w: %v", container.ErrFatalStartup, err), "Failed to create colmeia indexes")
		exitCode = 1
		return
	}

	// RabbitMQ
	conn, err := ctr.GetRabbitMQConnection()
	if err != nil {
		logger.ErrorWithError(err, "Failed to connect to RabbitMQ")
		exitCode = 1
		return
	}

	alertConsumer := consumer.NewAlertConsumer(conn, logger)
	if err := alertConsumer.Start(ctx); err != nil {
		logger.ErrorWithError(fmt.Errorf("%w: %v", container.ErrFatalStartup, err), "Failed to start alert consumer")
		exitCode = 1
		return
	}
	ctr.AddCleanupFunc(alertConsumer.Close)

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- alertConsumer.Run(ctx)
	}()

	// Initialize Gin router
	gin.SetMode(config.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	colmeiaService := colmeia.NewColmeiaService(colmeiaRepo)
	colmeiaController := controllers.NewColmeiaController(colmeiaService, logger)
	healthController := controllers.NewHealthController(health.NewHealthChecker(mongoClient, alertConsumer), logger)

	colmeiaController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Create HTTP server with timeouts
	port := config.Server.Port
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Colmeia API running... press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-consumerErr:
		if err != nil {
			logger.ErrorWithError(err, "Alert consumer stopped")
			exitCode = 1
		}
	case err := <-serverErr:
		logger.ErrorWithError(err, "HTTP server failed")
		exitCode = 1
	}
	stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
