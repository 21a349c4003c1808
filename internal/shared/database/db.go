package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Append inserts one usage record. The table is append-only; nothing in
// the operational path updates or deletes rows.
func (db *DB) Append(ctx context.Context, rec models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, subscriber_id, model, task_type, input_tokens, output_tokens,
			reasoning_tokens, cost_usd, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.conn.ExecContext(ctx,
		query,
		rec.ID,
		rec.SubscriberID,
		rec.Model,
		string(rec.TaskType),
		rec.InputTokens,
		rec.OutputTokens,
		rec.ReasoningTokens,
		rec.CostUSD,
		rec.LatencyMs,
		rec.CreatedAt,
	)

	return err
}

// Between returns a subscriber's usage records with created_at in [from, to).
func (db *DB) Between(ctx context.Context, subscriberID string, from, to time.Time) ([]models.UsageRecord, error) {
	query := `
		SELECT id, subscriber_id, model, task_type, input_tokens, output_tokens,
		       reasoning_tokens, cost_usd, latency_ms, created_at
		FROM usage_records
		WHERE subscriber_id = $1 AND created_at >= $2 AND created_at < $3
	`

	rows, err := db.conn.QueryContext(ctx, query, subscriberID, from, to)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// All returns every usage record.
func (db *DB) All(ctx context.Context) ([]models.UsageRecord, error) {
	query := `
		SELECT id, subscriber_id, model, task_type, input_tokens, output_tokens,
		       reasoning_tokens, cost_usd, latency_ms, created_at
		FROM usage_records
	`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.UsageRecord, error) {
	var out []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var taskType string
		if err := rows.Scan(
			&rec.ID,
			&rec.SubscriberID,
			&rec.Model,
			&taskType,
			&rec.InputTokens,
			&rec.OutputTokens,
			&rec.ReasoningTokens,
			&rec.CostUSD,
			&rec.LatencyMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		rec.TaskType = models.TaskType(taskType)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Lookup returns the budget tier assigned to a subscriber.
func (db *DB) Lookup(ctx context.Context, subscriberID string) (models.BudgetTier, error) {
	query := `
		SELECT tier_name, daily_limit_usd, monthly_limit_usd,
		       max_concurrent_tasks, allowed_model_tiers
		FROM subscriptions
		WHERE subscriber_id = $1
	`

	var tier models.BudgetTier
	var allowed []string
	err := db.conn.QueryRowContext(ctx, query, subscriberID).Scan(
		&tier.Name,
		&tier.DailyLimitUSD,
		&tier.MonthlyLimitUSD,
		&tier.MaxConcurrentTasks,
		pq.Array(&allowed),
	)

	if err == sql.ErrNoRows {
		return models.BudgetTier{}, fmt.Errorf("no subscription for %s", subscriberID)
	}
	if err != nil {
		return models.BudgetTier{}, fmt.Errorf("database error: %w", err)
	}

	for _, t := range allowed {
		tier.AllowedModelTiers = append(tier.AllowedModelTiers, models.ModelTier(t))
	}
	return tier, nil
}

// GetSubscriberByKey resolves an API key to its subscriber ID.
func (db *DB) GetSubscriberByKey(ctx context.Context, rawKey string) (string, error) {
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	query := `
		SELECT subscriber_id
		FROM api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	var subscriberID string
	err := db.conn.QueryRowContext(ctx, query, keyHash).Scan(&subscriberID)

	if err == sql.ErrNoRows {
		return "", fmt.Errorf("invalid API key")
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	return subscriberID, nil
}
