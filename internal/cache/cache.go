package cache

import (
	"context"
	"time"
)

// Cache holds pre-rendered JSON responses (availability per date, the
// service catalog). Values are opaque bytes; callers own serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Noop stands in when Redis is not configured; every read misses and every
// write vanishes, so handlers fall through to the store unchanged.
type Noop struct{}

var _ Cache = (*Noop)(nil)

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*Noop) Delete(context.Context, string) error { return nil }

func (*Noop) DeletePrefix(context.Context, string) error { return nil }
