package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed by value-pointer to every
// component. Nothing mutates it after LoadConfig returns.
type Config struct {
	ServerPort int

	SiteURL         string
	AllowedOrigins  []string
	AdminRefreshKey string

	CatalogRecords RecordsConfig
	OrderRecords   RecordsConfig

	Stripe StripeConfig
	Bucket BucketConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresURL   string
	MigrationsDir string

	RabbitMQURL      string
	OrderEventsQueue string

	CatalogWarmInterval time.Duration
	ProductBatchSize    int
	EventBatchSize      int
}

type RecordsConfig struct {
	BaseURL string
	APIKey  string
	BaseID  string
}

func (c RecordsConfig) Configured() bool {
	return c.APIKey != "" && c.BaseID != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type BucketConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Name            string
	UseSSL          bool
	PublicBaseURL   string
}

func (c BucketConfig) Configured() bool {
	return c.Endpoint != "" && c.Name != "" && c.PublicBaseURL != ""
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: could not load .env file, using process environment")
	}

	config := &Config{}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.ServerPort = p
	}
	if config.ServerPort == 0 {
		config.ServerPort = 8787
	}

	config.SiteURL = strings.TrimRight(getEnvOrDefault("SITE_URL", "https://your-domain.com"), "/")
	config.AllowedOrigins = splitList(getEnvOrDefault("ALLOWED_ORIGINS",
		"https://your-domain.com,https://www.your-domain.com,http://localhost:8000,http://127.0.0.1:8000"))
	config.AdminRefreshKey = os.Getenv("ADMIN_REFRESH_KEY")

	recordsBaseURL := strings.TrimRight(getEnvOrDefault("AIRTABLE_API_URL", "https://api.airtable.com/v0"), "/")
	config.CatalogRecords = RecordsConfig{
		BaseURL: recordsBaseURL,
		APIKey:  os.Getenv("AIRTABLE_API_KEY_WEB_RESOURCE"),
		BaseID:  os.Getenv("AIRTABLE_BASE_ID_WEB_RESOURCE"),
	}
	config.OrderRecords = RecordsConfig{
		BaseURL: recordsBaseURL,
		APIKey:  os.Getenv("AIRTABLE_API_KEY"),
		BaseID:  os.Getenv("AIRTABLE_BASE_ID"),
	}

	config.Stripe = StripeConfig{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:      getEnvOrDefault("STRIPE_CURRENCY", "usd"),
	}

	config.Bucket = BucketConfig{
		Endpoint:        os.Getenv("BUCKET_ENDPOINT"),
		AccessKeyID:     os.Getenv("BUCKET_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BUCKET_SECRET_ACCESS_KEY"),
		Name:            os.Getenv("BUCKET_NAME"),
		UseSSL:          getEnvOrDefault("BUCKET_USE_SSL", "true") == "true",
		PublicBaseURL:   strings.TrimRight(os.Getenv("MEDIA_PUBLIC_URL"), "/"),
	}

	redisHost := getEnvOrDefault("REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("REDIS_PORT", "6379")
	config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", db, err)
		}
		config.RedisDB = n
	}

	config.PostgresURL = os.Getenv("POSTGRES_URL")
	config.MigrationsDir = getEnvOrDefault("MIGRATIONS_DIR", "migrations")

	config.RabbitMQURL = os.Getenv("RABBITMQ_URL")
	config.OrderEventsQueue = getEnvOrDefault("RABBITMQ_ORDER_EVENTS_QUEUE", "storefront.orders.paid")

	if v := os.Getenv("CATALOG_WARM_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CATALOG_WARM_INTERVAL %q: %w", v, err)
		}
		config.CatalogWarmInterval = d
	}

	config.ProductBatchSize = getIntOrDefault("MIRROR_PRODUCT_BATCH_SIZE", 10)
	config.EventBatchSize = getIntOrDefault("MIRROR_EVENT_BATCH_SIZE", 5)

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
