package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

func ConnectDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// RunMigrations applies every *.sql file in migrationsDir in lexical order.
// Files must be safe to re-run.
func RunMigrations(db *sql.DB, migrationsDir string, logger *log.Logger) error {
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not specified")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	if len(migrationFiles) == 0 {
		logger.Println("No migration files found.")
		return nil
	}

	for _, fileName := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, fileName))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", fileName, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}
		logger.Printf("Applied migration: %s", fileName)
	}
	return nil
}

// DeliveryLog records verified payment notifications for later audit. It
// never decides whether a notification is processed.
type DeliveryLog struct {
	DB *sql.DB
}

func NewDeliveryLog(db *sql.DB) *DeliveryLog {
	return &DeliveryLog{DB: db}
}

func (s *DeliveryLog) Record(ctx context.Context, d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO webhook_deliveries (id, event_id, event_type, order_id, outcome, error, received_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.DB.ExecContext(ctx, query,
		d.ID,
		d.EventID,
		d.EventType,
		d.OrderID,
		d.Outcome,
		d.Error,
		d.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery %s: %w", d.EventID, err)
	}
	return nil
}

// CountForOrder returns how many deliveries have been recorded for an order.
// Redelivered notifications show up as counts above one.
func (s *DeliveryLog) CountForOrder(ctx context.Context, orderID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE order_id = $1`, orderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries for order %s: %w", orderID, err)
	}
	return count, nil
}
