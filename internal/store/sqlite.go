package store

import (
	"context"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/model"
)

type articleRow struct {
	Code      string    `gorm:"column:article_code;primaryKey"`
	Name      string    `gorm:"column:article_name;not null"`
	Price     float64   `gorm:"column:current_price;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (articleRow) TableName() string { return config.ArticlesTable }

type orderRow struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	ArticleCode string    `gorm:"column:article_code;not null;index"`
	OrderTime   time.Time `gorm:"column:order_time;not null;index"`
	StatDate    string    `gorm:"column:stat_date;not null"`
	Hour        int       `gorm:"column:hour_of_day;not null"`
}

func (orderRow) TableName() string { return config.OrdersTable }

type hourlyStatRow struct {
	ArticleCode string    `gorm:"column:article_code;primaryKey"`
	StatDate    string    `gorm:"column:stat_date;primaryKey"`
	Hour        int       `gorm:"column:hour;primaryKey;autoIncrement:false"`
	OrdersCount int       `gorm:"column:orders_count;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (hourlyStatRow) TableName() string { return config.HourlyStatsTable }

type botUserRow struct {
	ChatID     int64     `gorm:"column:chat_id;primaryKey;autoIncrement:false"`
	Username   string    `gorm:"column:username"`
	FirstName  string    `gorm:"column:first_name"`
	LastName   string    `gorm:"column:last_name"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	Daily      bool      `gorm:"column:subscribed_to_daily;not null"`
	Alerts     bool      `gorm:"column:subscribed_to_alerts;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	LastActive time.Time `gorm:"column:last_active"`
}

func (botUserRow) TableName() string { return config.BotUsersTable }

func (r botUserRow) subscriber() model.Subscriber {
	return model.Subscriber{
		ID:         r.ChatID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Active:     r.IsActive,
		Daily:      r.Daily,
		Alerts:     r.Alerts,
		CreatedAt:  r.CreatedAt,
		LastActive: r.LastActive,
	}
}

type sentReportRow struct {
	ID      uint      `gorm:"primaryKey"`
	ChatID  int64     `gorm:"column:chat_id;not null"`
	Kind    string    `gorm:"column:report_type;not null"`
	Content string    `gorm:"column:report_content;not null"`
	SentAt  time.Time `gorm:"column:sent_at;index"`
}

func (sentReportRow) TableName() string { return config.SentReportsTable }

// SQLite is a Gateway over a gorm SQLite database. The connection pool is
// capped at one connection, so each RecordOrder transaction runs alone.
type SQLite struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", config.ErrMissing)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&articleRow{}, &orderRow{}, &hourlyStatRow{}, &botUserRow{}, &sentReportRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) UpsertProduct(ctx context.Context, p model.Product) error {
	now := s.now().UTC()
	row := articleRow{Code: p.Code, Name: p.Name, Price: p.Price, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"article_name", "current_price", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return unavailable("upsert product", err)
	}
	return nil
}

func (s *SQLite) ListProducts(ctx context.Context) ([]model.Product, error) {
	var rows []articleRow
	if err := s.db.WithContext(ctx).Order("article_code").Find(&rows).Error; err != nil {
		return nil, unavailable("list products", err)
	}
	out := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Product{Code: r.Code, Name: r.Name, Price: r.Price, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *SQLite) RecordOrder(ctx context.Context, ev model.OrderEvent) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		date := model.DateKey(ev.Date())
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&orderRow{
			EventID:     ev.ID,
			ArticleCode: ev.ProductCode,
			OrderTime:   ev.Timestamp.UTC(),
			StatDate:    date,
			Hour:        ev.Hour(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		now := s.now().UTC()
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "article_code"}, {Name: "stat_date"}, {Name: "hour"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"orders_count": gorm.Expr(config.HourlyStatsTable + ".orders_count + 1"),
				"updated_at":   now,
			}),
		}).Create(&hourlyStatRow{
			ArticleCode: ev.ProductCode,
			StatDate:    date,
			Hour:        ev.Hour(),
			OrdersCount: 1,
			UpdatedAt:   now,
		}).Error
	})
	if err != nil {
		return false, unavailable("record order", err)
	}
	return inserted, nil
}

func (s *SQLite) RecentOrders(ctx context.Context, limit int) ([]model.OrderEvent, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).Order("order_time DESC, event_id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, unavailable("recent orders", err)
	}
	out := make([]model.OrderEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.OrderEvent{ID: r.EventID, ProductCode: r.ArticleCode, Timestamp: r.OrderTime})
	}
	return out, nil
}

func (s *SQLite) HourlyBuckets(ctx context.Context, date time.Time, hour int) ([]model.Bucket, error) {
	var rows []hourlyStatRow
	err := s.db.WithContext(ctx).
		Where("stat_date = ? AND hour = ?", model.DateKey(date), hour).
		Order("orders_count DESC, article_code").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("hourly buckets", err)
	}
	out := make([]model.Bucket, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Bucket{ProductCode: r.ArticleCode, Date: model.Day(date), Hour: r.Hour, Count: r.OrdersCount})
	}
	return out, nil
}

func (s *SQLite) DailyTotals(ctx context.Context, date time.Time, throughHour int) (map[string]int, error) {
	var rows []struct {
		ArticleCode string
		Total       int
	}
	err := s.db.WithContext(ctx).Model(&hourlyStatRow{}).
		Select("article_code, SUM(orders_count) AS total").
		Where("stat_date = ? AND hour <= ?", model.DateKey(date), clampHour(throughHour)).
		Group("article_code").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable("daily totals", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ArticleCode] = r.Total
	}
	return out, nil
}

func (s *SQLite) UpsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	now := s.now().UTC()
	row := botUserRow{
		ChatID:     sub.ID,
		Username:   sub.Username,
		FirstName:  sub.FirstName,
		LastName:   sub.LastName,
		IsActive:   true,
		Daily:      true,
		CreatedAt:  now,
		LastActive: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "last_active", "is_active"}),
	}).Create(&row).Error
	if err != nil {
		return unavailable("upsert subscriber", err)
	}
	return nil
}

func (s *SQLite) SetSubscription(ctx context.Context, id int64, kind model.SubscriptionKind, value bool) error {
	column, err := subscriptionColumn(kind)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&botUserRow{}).
		Where("chat_id = ?", id).
		Updates(map[string]interface{}{
			column:        value,
			"is_active":   true,
			"last_active": s.now().UTC(),
		})
	if res.Error != nil {
		return unavailable("set subscription", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (s *SQLite) Subscribers(ctx context.Context, kind model.SubscriptionKind) ([]model.Subscriber, error) {
	column, err := subscriptionColumn(kind)
	if err != nil {
		return nil, err
	}
	var rows []botUserRow
	err = s.db.WithContext(ctx).
		Where("is_active = ? AND "+column+" = ?", true, true).
		Order("chat_id").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("subscribers", err)
	}
	out := make([]model.Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.subscriber())
	}
	return out, nil
}

func (s *SQLite) RecentSubscribers(ctx context.Context, limit int) ([]model.Subscriber, error) {
	q := s.db.WithContext(ctx).Order("last_active DESC, chat_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []botUserRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, unavailable("recent subscribers", err)
	}
	out := make([]model.Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.subscriber())
	}
	return out, nil
}

func (s *SQLite) CountActiveSubscribers(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&botUserRow{}).Where("is_active = ?", true).Count(&n).Error; err != nil {
		return 0, unavailable("count subscribers", err)
	}
	return int(n), nil
}

func (s *SQLite) DeactivateIdleSubscribers(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&botUserRow{}).
		Where("is_active = ? AND last_active < ?", true, before.UTC()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, unavailable("deactivate idle subscribers", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SQLite) AppendSentReport(ctx context.Context, r model.SentReport) error {
	at := r.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	row := sentReportRow{ChatID: r.Target, Kind: r.Kind, Content: r.Content, SentAt: at.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return unavailable("append sent report", err)
	}
	return nil
}

func (s *SQLite) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("order_time < ?", cutoff.UTC()).Delete(&orderRow{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		res = tx.Where("sent_at < ?", cutoff.UTC()).Delete(&sentReportRow{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return total, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLite) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
