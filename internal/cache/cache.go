// Package cache remembers customers between conversations: the last name
// they gave, their recent completed bookings and the most recent one.
//
// Absent entries are never errors. Backend failures are reported wrapped in
// ErrUnavailable so callers can degrade instead of aborting the chat.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sportbar2312/reservation-bot/internal/wizard"
)

// ErrUnavailable marks a failure of the underlying storage.
var ErrUnavailable = errors.New("cache: unavailable")

// DefaultHistoryLimit is how many completed bookings are kept per customer.
const DefaultHistoryLimit = 10

const keyPrefix = "sportbar"

// Backend stores raw JSON documents by key.
type Backend interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// PushBounded appends value to the list at key, keeping only the newest
	// limit entries.
	PushBounded(ctx context.Context, key string, value []byte, limit int) error
	// List returns the list at key, oldest first.
	List(ctx context.Context, key string) ([][]byte, error)
}

// Cache stores customer data under per-client keys.
type Cache struct {
	backend      Backend
	historyLimit int
}

// New wraps backend. A non-positive historyLimit uses DefaultHistoryLimit.
func New(backend Backend, historyLimit int) *Cache {
	if backend == nil {
		panic("cache: backend required")
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Cache{backend: backend, historyLimit: historyLimit}
}

// HistoryLimit reports how many bookings History can return.
func (c *Cache) HistoryLimit() int {
	return c.historyLimit
}

// LoadName returns the last name the client gave, or "" if none.
func (c *Cache) LoadName(ctx context.Context, client string) (string, error) {
	var name string
	found, err := c.get(ctx, key(client, "user_name"), &name)
	if err != nil || !found {
		return "", err
	}
	return name, nil
}

// SaveName remembers the client's name for the next conversation.
func (c *Cache) SaveName(ctx context.Context, client, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("cache: name required")
	}
	return c.set(ctx, key(client, "user_name"), name)
}

// RecordBooking appends a completed booking to the client's history and
// makes it the last booking.
func (c *Cache) RecordBooking(ctx context.Context, client string, b wizard.Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("cache: marshal booking: %w", err)
	}
	if err := c.backend.PushBounded(ctx, key(client, "booking_history"), data, c.historyLimit); err != nil {
		return unavailable("push booking history", err)
	}
	if err := c.backend.Set(ctx, key(client, "last_booking"), data); err != nil {
		return unavailable("set last booking", err)
	}
	return nil
}

// History returns the client's recent bookings, newest first.
func (c *Cache) History(ctx context.Context, client string) ([]wizard.Booking, error) {
	raw, err := c.backend.List(ctx, key(client, "booking_history"))
	if err != nil {
		return nil, unavailable("list booking history", err)
	}
	out := make([]wizard.Booking, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var b wizard.Booking
		if err := json.Unmarshal(raw[i], &b); err != nil {
			return nil, fmt.Errorf("cache: decode booking history: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// LastBooking returns the most recent completed booking, or nil.
func (c *Cache) LastBooking(ctx context.Context, client string) (*wizard.Booking, error) {
	var b wizard.Booking
	found, err := c.get(ctx, key(client, "last_booking"), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (c *Cache) get(ctx context.Context, k string, dst any) (bool, error) {
	data, err := c.backend.Get(ctx, k)
	if err != nil {
		return false, unavailable("get "+k, err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", k, err)
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, k string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", k, err)
	}
	if err := c.backend.Set(ctx, k, data); err != nil {
		return unavailable("set "+k, err)
	}
	return nil
}

func key(client, name string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "anonymous"
	}
	return keyPrefix + ":" + client + ":" + name
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
