package store

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
)

type bucketKey struct {
	code string
	date string
	hour int
}

// Memory is an in-process Gateway. A single mutex covers the event set and
// the bucket map, which makes RecordOrder atomic.
type Memory struct {
	mu          sync.Mutex
	products    map[string]model.Product
	events      map[string]model.OrderEvent
	buckets     map[bucketKey]int
	subscribers map[int64]model.Subscriber
	reports     []model.SentReport
	now         func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		products:    make(map[string]model.Product),
		events:      make(map[string]model.OrderEvent),
		buckets:     make(map[bucketKey]int),
		subscribers: make(map[int64]model.Subscriber),
		now:         time.Now,
	}
}

func (m *Memory) UpsertProduct(_ context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = m.now()
	m.products[p.Code] = p
	return nil
}

func (m *Memory) ListProducts(_ context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) RecordOrder(_ context.Context, ev model.OrderEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.events[ev.ID]; dup {
		return false, nil
	}
	m.events[ev.ID] = ev
	m.buckets[bucketKey{ev.ProductCode, model.DateKey(ev.Date()), ev.Hour()}]++
	return true, nil
}

func (m *Memory) RecentOrders(_ context.Context, limit int) ([]model.OrderEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.OrderEvent, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b model.OrderEvent) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) HourlyBuckets(_ context.Context, date time.Time, hour int) ([]model.Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := model.DateKey(date)
	var out []model.Bucket
	for k, n := range m.buckets {
		if k.date == day && k.hour == hour {
			out = append(out, model.Bucket{ProductCode: k.code, Date: model.Day(date), Hour: k.hour, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductCode < out[j].ProductCode
	})
	return out, nil
}

func (m *Memory) DailyTotals(_ context.Context, date time.Time, throughHour int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := model.DateKey(date)
	throughHour = clampHour(throughHour)
	out := make(map[string]int)
	for k, n := range m.buckets {
		if k.date == day && k.hour <= throughHour {
			out[k.code] += n
		}
	}
	return out, nil
}

func (m *Memory) UpsertSubscriber(_ context.Context, s model.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	existing, ok := m.subscribers[s.ID]
	if !ok {
		existing = model.Subscriber{ID: s.ID, Daily: true, CreatedAt: now}
	}
	existing.Username = s.Username
	existing.FirstName = s.FirstName
	existing.LastName = s.LastName
	existing.Active = true
	existing.LastActive = now
	m.subscribers[s.ID] = existing
	return nil
}

func (m *Memory) SetSubscription(_ context.Context, id int64, kind model.SubscriptionKind, value bool) error {
	if _, err := subscriptionColumn(kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	if kind == model.SubscriptionDaily {
		s.Daily = value
	} else {
		s.Alerts = value
	}
	s.Active = true
	s.LastActive = m.now()
	m.subscribers[id] = s
	return nil
}

func (m *Memory) Subscribers(_ context.Context, kind model.SubscriptionKind) ([]model.Subscriber, error) {
	if _, err := subscriptionColumn(kind); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscriber
	for _, s := range m.subscribers {
		if s.Active && s.Subscribed(kind) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) RecentSubscribers(_ context.Context, limit int) ([]model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b model.Subscriber) int {
		if c := b.LastActive.Compare(a.LastActive); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountActiveSubscribers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subscribers {
		if s.Active {
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeactivateIdleSubscribers(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.subscribers {
		if s.Active && s.LastActive.Before(before) {
			s.Active = false
			m.subscribers[id] = s
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendSentReport(_ context.Context, r model.SentReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.reports = append(m.reports, r)
	return nil
}

// SentReports returns a copy of the audit log.
func (m *Memory) SentReports() []model.SentReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reports)
}

func (m *Memory) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, ev := range m.events {
		if ev.Timestamp.Before(cutoff) {
			delete(m.events, id)
			n++
		}
	}
	kept := m.reports[:0]
	for _, r := range m.reports {
		if r.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.reports = kept
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
