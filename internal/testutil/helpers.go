package testutil

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/shopspring/decimal"
)

var errDuplicate = errors.New("duplicate key value violates unique constraint")

// ErrStore is a generic store failure for injection.
var ErrStore = errors.New("store unavailable")

// Time is the fixed instant tests start from.
var Time = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

// Product builds a product with the given on-hand quantity and tax rate.
func Product(id string, stock int, taxPercent string) model.Product {
	p := model.Product{
		BaseModel: model.BaseModel{ID: id, CreatedAt: Time, UpdatedAt: Time},
		Name:      "Product " + id,
		Price:     decimal.NewFromInt(100),
		StockQty:  stock,
	}
	if taxPercent != "" {
		p.TaxPercent = decimal.NewNullDecimal(decimal.RequireFromString(taxPercent))
	}
	return p
}

func Customer(id, state string) model.Customer {
	c := model.Customer{
		BaseModel: model.BaseModel{ID: id, CreatedAt: Time, UpdatedAt: Time},
		Name:      "Customer " + id,
	}
	if state != "" {
		c.State = &state
	}
	return c
}

// Counter is an in-memory code.Counter.
type Counter struct {
	mu     sync.Mutex
	values map[string]int64
	Err    error
}

func NewCounter() *Counter {
	return &Counter{values: map[string]int64{}}
}

func (c *Counter) Raise(ctx context.Context, key string, floor int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if cur, ok := c.values[key]; !ok || cur < floor {
		c.values[key] = floor
	}
	return nil
}

// Value returns the current value of key.
func (c *Counter) Value(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

func (c *Counter) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	_, ok := c.values[key]
	return ok, nil
}

func (c *Counter) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	c.values[key]++
	return c.values[key], nil
}

// Locker is an in-memory reservation.Locker.
type Locker struct {
	mu       sync.Mutex
	held     map[string]string
	Acquired int
}

func NewLocker() *Locker {
	return &Locker{held: map[string]string{}}
}

func (l *Locker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = value
	l.Acquired++
	return true, nil
}

func (l *Locker) ReleaseLock(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == value {
		delete(l.held, key)
	}
	return nil
}

// Hold takes key from outside, simulating another process.
func (l *Locker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}

func (l *Locker) AcquiredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Acquired
}

// Recorder captures published events and indexed documents.
type Recorder struct {
	mu        sync.Mutex
	Published []any
	Indexed   map[string]any
	Err       error
}

func NewRecorder() *Recorder {
	return &Recorder{Indexed: map[string]any{}}
}

func (r *Recorder) Publish(ctx context.Context, key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Published = append(r.Published, value)
	return nil
}

func (r *Recorder) Index(ctx context.Context, index, id string, doc any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Indexed[index+"/"+id] = doc
	return nil
}

func (r *Recorder) PublishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Published)
}

func (r *Recorder) IndexedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Indexed)
}

// Code formats n the way the allocator does for prefix, for assertions.
func Code(prefix string, n int) string {
	s := strconv.Itoa(n)
	for len(s) < 6 {
		s = "0" + s
	}
	return prefix + s
}
