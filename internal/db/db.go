// Package db provides a pgxpool-based connection pool with schema bootstrap,
// prepared statement registration and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/orderpulse/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New applies the schema, then creates and validates a connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if err := Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the embedded schema on a dedicated connection. Every
// statement is idempotent.
func Migrate(ctx context.Context, dbURL string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect for migration: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers every statement the store, API and
// maintenance layers use.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Articles
		"upsert_article": `
			INSERT INTO ` + config.ArticlesTable + ` (article_code, article_name, current_price)
			VALUES ($1, $2, $3)
			ON CONFLICT (article_code) DO UPDATE SET
				article_name = EXCLUDED.article_name,
				current_price = EXCLUDED.current_price,
				updated_at = NOW()`,
		"list_articles": "SELECT article_code, article_name, current_price, updated_at FROM " + config.ArticlesTable + " ORDER BY article_code",

		// Orders: insert the event once, then insert-or-increment its bucket,
		// in one statement. A duplicate event id inserts nothing and so
		// increments nothing.
		"record_order": `
			WITH ins AS (
				INSERT INTO ` + config.OrdersTable + ` (event_id, article_code, order_time, stat_date, hour_of_day)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (event_id) DO NOTHING
				RETURNING article_code, stat_date, hour_of_day
			)
			INSERT INTO ` + config.HourlyStatsTable + ` (article_code, stat_date, hour, orders_count)
			SELECT article_code, stat_date, hour_of_day, 1 FROM ins
			ON CONFLICT (article_code, stat_date, hour) DO UPDATE SET
				orders_count = ` + config.HourlyStatsTable + `.orders_count + EXCLUDED.orders_count,
				updated_at = NOW()`,
		"recent_orders": "SELECT event_id, article_code, order_time FROM " + config.OrdersTable + " ORDER BY order_time DESC LIMIT $1",

		// Rollups
		"hourly_buckets": `
			SELECT article_code, stat_date, hour, orders_count
			FROM ` + config.HourlyStatsTable + `
			WHERE stat_date = $1 AND hour = $2
			ORDER BY orders_count DESC, article_code`,
		"daily_totals": `
			SELECT article_code, SUM(orders_count)::int
			FROM ` + config.HourlyStatsTable + `
			WHERE stat_date = $1 AND hour <= $2
			GROUP BY article_code`,

		// Subscribers
		"upsert_bot_user": `
			INSERT INTO ` + config.BotUsersTable + ` (chat_id, username, first_name, last_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chat_id) DO UPDATE SET
				username = EXCLUDED.username,
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				last_active = NOW(),
				is_active = TRUE`,
		"set_daily": `
			UPDATE ` + config.BotUsersTable + `
			SET subscribed_to_daily = $2, last_active = NOW(), is_active = TRUE
			WHERE chat_id = $1`,
		"set_alerts": `
			UPDATE ` + config.BotUsersTable + `
			SET subscribed_to_alerts = $2, last_active = NOW(), is_active = TRUE
			WHERE chat_id = $1`,
		"recent_bot_users": `
			SELECT chat_id, username, first_name, last_name, is_active,
			       subscribed_to_daily, subscribed_to_alerts, created_at, last_active
			FROM ` + config.BotUsersTable + `
			ORDER BY last_active DESC, chat_id
			LIMIT $1
		`,
		"active_daily_users": `
			SELECT chat_id, username, first_name, last_name, is_active,
			       subscribed_to_daily, subscribed_to_alerts, created_at, last_active
			FROM ` + config.BotUsersTable + `
			WHERE is_active = TRUE AND subscribed_to_daily = TRUE
			ORDER BY chat_id`,
		"active_alert_users": `
			SELECT chat_id, username, first_name, last_name, is_active,
			       subscribed_to_daily, subscribed_to_alerts, created_at, last_active
			FROM ` + config.BotUsersTable + `
			WHERE is_active = TRUE AND subscribed_to_alerts = TRUE
			ORDER BY chat_id`,
		"count_active_users": "SELECT COUNT(*) FROM " + config.BotUsersTable + " WHERE is_active = TRUE",
		"deactivate_idle_users": `
			UPDATE ` + config.BotUsersTable + `
			SET is_active = FALSE
			WHERE is_active = TRUE AND last_active < $1`,

		// Audit
		"append_sent_report": "INSERT INTO " + config.SentReportsTable + " (chat_id, report_type, report_content, sent_at) VALUES ($1, $2, $3, $4)",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
