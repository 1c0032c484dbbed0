package sessionstore

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/stockbook/internal/log"
)

// Backend kinds accepted by Open.
const (
	KindFile   = "file"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind        string
	Dir         string
	RedisURL    string
	RedisPrefix string
	Logger      *log.Logger
}

// Open builds a Store from opts. The returned close function releases the
// backend's resources and is never nil.
func Open(ctx context.Context, opts Options) (*Store, func() error, error) {
	noop := func() error { return nil }
	storeOpts := []Option{WithLogger(opts.Logger)}

	switch opts.Kind {
	case "", KindFile:
		fb, err := NewFileBackend(opts.Dir)
		if err != nil {
			return nil, noop, err
		}
		return New(fb, storeOpts...), noop, nil

	case KindMemory:
		return New(NewMemoryBackend(), storeOpts...), noop, nil

	case KindRedis:
		if opts.RedisURL == "" {
			return nil, noop, fmt.Errorf("session.redis_url is required for the redis backend")
		}
		client, err := DialRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return New(NewRedisBackend(client, opts.RedisPrefix), storeOpts...), client.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown session backend %q (want file, redis or memory)", opts.Kind)
	}
}
