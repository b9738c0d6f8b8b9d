// Package quota gates session starts. The engine itself has no quota
// knowledge; it only consults a Gate once before a session is admitted.
package quota

import (
	"errors"
	"sync"
	"time"
)

// Category separates ordinary personas from premium ones for metering.
type Category string

const (
	CategoryOrdinary Category = "ordinary"
	CategoryPremium  Category = "premium"
)

// ErrExceeded indicates the user has no remaining sessions in the category.
var ErrExceeded = errors.New("quota: session limit reached")

// Gate admits or rejects a session start for a user and category.
type Gate interface {
	Allow(userID string, category Category) error
}

// Unlimited is a Gate that admits everything.
type Unlimited struct{}

func (Unlimited) Allow(string, Category) error { return nil }

// MemoryMeter is an in-memory daily meter keyed by user and category.
type MemoryMeter struct {
	mu     sync.Mutex
	limits map[Category]int
	counts map[string]int
	day    string
	now    func() time.Time
}

// NewMemoryMeter creates a meter with per-day limits per category. A limit
// of zero or less means the category is unlimited.
func NewMemoryMeter(ordinaryPerDay, premiumPerDay int) *MemoryMeter {
	return &MemoryMeter{
		limits: map[Category]int{
			CategoryOrdinary: ordinaryPerDay,
			CategoryPremium:  premiumPerDay,
		},
		counts: map[string]int{},
		now:    time.Now,
	}
}

// Allow consumes one session from the user's daily budget.
func (m *MemoryMeter) Allow(userID string, category Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.now().UTC().Format("2006-01-02")
	if m.day != today {
		m.day = today
		m.counts = map[string]int{}
	}

	limit := m.limits[category]
	if limit <= 0 {
		return nil
	}
	key := userID + "/" + string(category)
	if m.counts[key] >= limit {
		return ErrExceeded
	}
	m.counts[key]++
	return nil
}
