package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/db"
	"github.com/albapepper/orderpulse/internal/model"
)

// Postgres is a Gateway over the shared pgx pool. Statement names refer to
// the prepared statements registered in internal/db.
type Postgres struct {
	pool *db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) UpsertProduct(ctx context.Context, pr model.Product) error {
	if _, err := p.pool.Exec(ctx, "upsert_article", pr.Code, pr.Name, pr.Price); err != nil {
		return unavailable("upsert product", err)
	}
	return nil
}

func (p *Postgres) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := p.pool.Query(ctx, "list_articles")
	if err != nil {
		return nil, unavailable("list products", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var pr model.Product
		if err := rows.Scan(&pr.Code, &pr.Name, &pr.Price, &pr.UpdatedAt); err != nil {
			return nil, unavailable("scan product", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list products", err)
	}
	return out, nil
}

// RecordOrder runs the single-statement insert-event + insert-or-increment.
// One affected row means the event was new and its bucket was bumped.
func (p *Postgres) RecordOrder(ctx context.Context, ev model.OrderEvent) (bool, error) {
	tag, err := p.pool.Exec(ctx, "record_order",
		ev.ID, ev.ProductCode, ev.Timestamp, ev.Date(), ev.Hour())
	if err != nil {
		return false, unavailable("record order", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) RecentOrders(ctx context.Context, limit int) ([]model.OrderEvent, error) {
	rows, err := p.pool.Query(ctx, "recent_orders", limit)
	if err != nil {
		return nil, unavailable("recent orders", err)
	}
	defer rows.Close()

	var out []model.OrderEvent
	for rows.Next() {
		var ev model.OrderEvent
		if err := rows.Scan(&ev.ID, &ev.ProductCode, &ev.Timestamp); err != nil {
			return nil, unavailable("scan order", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent orders", err)
	}
	return out, nil
}

func (p *Postgres) HourlyBuckets(ctx context.Context, date time.Time, hour int) ([]model.Bucket, error) {
	rows, err := p.pool.Query(ctx, "hourly_buckets", model.Day(date), hour)
	if err != nil {
		return nil, unavailable("hourly buckets", err)
	}
	defer rows.Close()

	var out []model.Bucket
	for rows.Next() {
		var b model.Bucket
		if err := rows.Scan(&b.ProductCode, &b.Date, &b.Hour, &b.Count); err != nil {
			return nil, unavailable("scan bucket", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("hourly buckets", err)
	}
	return out, nil
}

func (p *Postgres) DailyTotals(ctx context.Context, date time.Time, throughHour int) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, "daily_totals", model.Day(date), clampHour(throughHour))
	if err != nil {
		return nil, unavailable("daily totals", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var code string
		var total int
		if err := rows.Scan(&code, &total); err != nil {
			return nil, unavailable("scan daily total", err)
		}
		out[code] = total
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("daily totals", err)
	}
	return out, nil
}

func (p *Postgres) UpsertSubscriber(ctx context.Context, s model.Subscriber) error {
	if _, err := p.pool.Exec(ctx, "upsert_bot_user", s.ID, s.Username, s.FirstName, s.LastName); err != nil {
		return unavailable("upsert subscriber", err)
	}
	return nil
}

func (p *Postgres) SetSubscription(ctx context.Context, id int64, kind model.SubscriptionKind, value bool) error {
	stmt := "set_daily"
	switch kind {
	case model.SubscriptionDaily:
	case model.SubscriptionAlerts:
		stmt = "set_alerts"
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownSubscription, kind)
	}
	tag, err := p.pool.Exec(ctx, stmt, id, value)
	if err != nil {
		return unavailable("set subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (p *Postgres) Subscribers(ctx context.Context, kind model.SubscriptionKind) ([]model.Subscriber, error) {
	stmt := "active_daily_users"
	switch kind {
	case model.SubscriptionDaily:
	case model.SubscriptionAlerts:
		stmt = "active_alert_users"
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSubscription, kind)
	}

	rows, err := p.pool.Query(ctx, stmt)
	if err != nil {
		return nil, unavailable("subscribers", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Subscriber, error) {
		var s model.Subscriber
		err := row.Scan(&s.ID, &s.Username, &s.FirstName, &s.LastName, &s.Active,
			&s.Daily, &s.Alerts, &s.CreatedAt, &s.LastActive)
		return s, err
	})
	if err != nil {
		return nil, unavailable("scan subscribers", err)
	}
	return subs, nil
}

func (p *Postgres) RecentSubscribers(ctx context.Context, limit int) ([]model.Subscriber, error) {
	// LIMIT NULL means no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := p.pool.Query(ctx, "recent_bot_users", lim)
	if err != nil {
		return nil, unavailable("recent subscribers", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Subscriber, error) {
		var s model.Subscriber
		err := row.Scan(&s.ID, &s.Username, &s.FirstName, &s.LastName, &s.Active,
			&s.Daily, &s.Alerts, &s.CreatedAt, &s.LastActive)
		return s, err
	})
	if err != nil {
		return nil, unavailable("scan recent subscribers", err)
	}
	return subs, nil
}

func (p *Postgres) CountActiveSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "count_active_users").Scan(&n); err != nil {
		return 0, unavailable("count subscribers", err)
	}
	return n, nil
}

func (p *Postgres) DeactivateIdleSubscribers(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, "deactivate_idle_users", before)
	if err != nil {
		return 0, unavailable("deactivate idle subscribers", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) AppendSentReport(ctx context.Context, r model.SentReport) error {
	at := r.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := p.pool.Exec(ctx, "append_sent_report", r.Target, r.Kind, r.Content, at); err != nil {
		return unavailable("append sent report", err)
	}
	return nil
}

func (p *Postgres) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM "+config.OrdersTable+" WHERE order_time < $1", cutoff)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		tag, err = tx.Exec(ctx, "DELETE FROM "+config.SentReportsTable+" WHERE sent_at < $1", cutoff)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return total, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.HealthCheck(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
