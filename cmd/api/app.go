package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/mirror"
	"storefront/internal/payment"
	"storefront/internal/service"
	"storefront/internal/store"

	_ "github.com/lib/pq"
)

type application struct {
	config       *config.Config
	logger       *log.Logger
	db           *sql.DB
	cache        *store.RedisCache
	publisher    *events.Publisher
	gateway      *catalog.Gateway
	services     handler.Services
	server       *http.Server
	shutdownChan chan struct{}
	warmerDone   chan struct{}
}

// newApplication wires every component the configuration allows. Optional
// backends (Postgres, RabbitMQ, the bucket) are skipped when unset.
func newApplication(logger *log.Logger, cfg *config.Config) (*application, error) {
	app := &application{
		config:       cfg,
		logger:       logger,
		shutdownChan: make(chan struct{}),
		warmerDone:   make(chan struct{}),
	}

	redisClient, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.cache = store.NewRedisCache(redisClient)

	var deliveries service.DeliveryRecorder
	if cfg.PostgresURL != "" {
		db, err := store.ConnectDB(cfg.PostgresURL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.db = db
		if err := store.RunMigrations(db, cfg.MigrationsDir, logger); err != nil {
			app.close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		deliveries = store.NewDeliveryLog(db)
	} else {
		logger.Println("POSTGRES_URL not set, webhook deliveries will not be recorded")
	}

	var publisher service.EventPublisher
	if cfg.RabbitMQURL != "" {
		p, err := events.NewPublisher(logger, cfg.RabbitMQURL, cfg.OrderEventsQueue)
		if err != nil {
			app.close()
			return nil, err
		}
		app.publisher = p
		publisher = p
	} else {
		logger.Println("RABBITMQ_URL not set, order events will not be published")
	}

	httpClient := &http.Client{Timeout: 20 * time.Second}

	if cfg.CatalogRecords.Configured() {
		collections := []catalog.Collection{catalog.NewDeals()}
		if cfg.Bucket.Configured() {
			bucket, err := store.NewMinioBucket(cfg.Bucket)
			if err != nil {
				app.close()
				return nil, err
			}
			m := mirror.New(logger, bucket, mirror.NewHTTPFetcher(nil), cfg.Bucket.PublicBaseURL)
			collections = append(collections,
				catalog.NewProducts(m, cfg.ProductBatchSize),
				catalog.NewEvents(m, cfg.EventBatchSize))
		}
		records := airtable.NewClient(cfg.CatalogRecords, httpClient)
		app.gateway = catalog.NewGateway(logger, app.cache, records, cfg.AdminRefreshKey, collections...)
		app.services.Catalog = app.gateway
	}

	if cfg.OrderRecords.Configured() {
		records := airtable.NewClient(cfg.OrderRecords, httpClient)
		stripeClient := payment.NewStripeClient(cfg.Stripe.SecretKey, nil)

		app.services.Submit = service.NewSubmitService(logger, records)
		app.services.Webhooks = service.NewWebhookService(logger, cfg.Stripe.WebhookSecret,
			stripeClient, service.NewRecordsOrderUpdater(records), deliveries, publisher)
		if cfg.Stripe.SecretKey != "" {
			app.services.Checkout = service.NewCheckoutService(logger, records, stripeClient, cfg.SiteURL, cfg.Stripe.Currency)
		}
	}

	return app, nil
}

func (app *application) close() {
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Printf("Error closing RabbitMQ publisher: %v", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Printf("Error closing database: %v", err)
		}
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Printf("Error closing Redis client: %v", err)
		}
	}
}
