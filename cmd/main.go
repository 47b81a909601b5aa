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

	"salon-chat/domain/event"
	"salon-chat/infrastructure/httpapi"
	"salon-chat/internal"
	"salon-chat/observability"
	"salon-chat/runtime"
	"salon-chat/runtime/workers"
	"salon-chat/services"
	"salon-chat/storage"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run serves the attachment API until SIGINT or SIGTERM.
func run() error {
	// 1. Configuration & Logger
	var config Config
	var storageConfig internal.StorageConfig
	if err := internal.Load(&config, &storageConfig); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage backend
	backend, closeStorage, err := storage.Open(storageConfig.Storage(), log)
	if err != nil {
		return fmt.Errorf("storage opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing storage...")
		_ = closeStorage()
	}()

	// 3. Rejections are reported to listeners as well as to the caller
	monitor := observability.NewMonitor()
	listeners := runtime.NewListeners(log)
	listeners.Add(event.ErrorClass, event.ListenerFunc(func(evt event.Event) error {
		log.Warn("Attachment rejected", "type", evt.Error.Type, "message", evt.Error.Message)
		return nil
	}))
	listeners.Add(event.ErrorClass, monitor)
	uploads := services.NewUploadService(log, backend, listeners)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(log, 0)
	supervisor.Add(workers.NewHeartbeatWorker(log, monitor, config.MonitorInterval))
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()
	defer func() {
		supervisor.Stop()
		<-supervisorDone
	}()

	// 5. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           httpapi.NewRouter(log, httpapi.NewUploadHandler(log, uploads, backend, monitor)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting attachment API", "address", address, "driver", storageConfig.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
