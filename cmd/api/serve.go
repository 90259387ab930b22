package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/spf13/cobra"
)

func newLogger() *log.Logger {
	return log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			app, err := newApplication(logger, cfg)
			if err != nil {
				return err
			}
			defer app.close()

			app.server = &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
				Handler:      handler.NewRouter(logger, cfg, app.services),
				IdleTimeout:  time.Minute,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 2 * time.Minute,
				ErrorLog:     logger,
			}

			if cfg.CatalogWarmInterval > 0 && app.gateway != nil {
				go app.runCatalogWarmer()
			} else {
				close(app.warmerDone)
			}

			return app.serve()
		},
	}
}

func (app *application) serve() error {
	app.logger.Printf("Starting server on %s", app.server.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		app.shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		app.logger.Printf("Received signal %s. Shutting down server...", sig)
	}

	app.shutdown()
	app.logger.Println("Application shut down complete.")
	return nil
}

// shutdown stops the warmer, drains the server and waits for pending cache
// writes. It runs on both the signal path and the listen-failure path.
func (app *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.logger.Println("Signaling catalog warmer to stop...")
	close(app.shutdownChan)
	select {
	case <-app.warmerDone:
		app.logger.Println("Catalog warmer stopped.")
	case <-time.After(10 * time.Second):
		app.logger.Println("Catalog warmer did not stop in time.")
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Printf("Graceful server shutdown failed: %v", err)
	} else {
		app.logger.Println("Server gracefully stopped.")
	}

	if app.gateway != nil {
		app.logger.Println("Waiting for pending cache writes...")
		app.gateway.Wait()
	}
}

// runCatalogWarmer refreshes every collection on a fixed interval so the
// request path rarely sees a miss.
func (app *application) runCatalogWarmer() {
	defer close(app.warmerDone)

	ticker := time.NewTicker(app.config.CatalogWarmInterval)
	defer ticker.Stop()

	app.logger.Printf("Catalog warmer started. Will run every %s.", app.config.CatalogWarmInterval.String())

	for {
		select {
		case <-ticker.C:
			app.logger.Println("Warmer: Triggered by ticker. Refreshing catalog.")
			app.warmCatalog(context.Background())
		case <-app.shutdownChan:
			app.logger.Println("Warmer: Received shutdown signal. Stopping...")
			return
		}
	}
}

func (app *application) warmCatalog(ctx context.Context) map[string]any {
	results := make(map[string]any)
	for _, key := range app.gateway.Collections() {
		stats, err := app.gateway.Refresh(ctx, key)
		if err != nil {
			app.logger.Printf("Warmer: Error refreshing %s: %v", key, err)
			results[key] = map[string]string{"error": err.Error()}
			continue
		}
		app.logger.Printf("Warmer: Refreshed %s.", key)
		if stats != nil {
			results[key] = stats
		} else {
			results[key] = map[string]string{"status": "refreshed"}
		}
	}
	return results
}
