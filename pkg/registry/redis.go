package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/igolaizola/tunepoll/pkg/task"
	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix = "tunepoll:task:"
	redisTTL    = 30 * 24 * time.Hour
)

type redisRegistry struct {
	client *redis.Client
}

// NewRedis connects to redis. The connection string is either a redis:// URL
// or a plain host:port address.
func NewRedis(ctx context.Context, conn string) (Registry, error) {
	opts := &redis.Options{Addr: conn}
	if strings.HasPrefix(conn, "redis://") || strings.HasPrefix(conn, "rediss://") {
		var err error
		opts, err = redis.ParseURL(conn)
		if err != nil {
			return nil, fmt.Errorf("registry: invalid redis url: %w", err)
		}
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("registry: couldn't connect to redis at %s: %w", opts.Addr, err)
	}
	return &redisRegistry{client: client}, nil
}

// Close releases the redis connection pool.
func (r *redisRegistry) Close() error {
	return r.client.Close()
}

func (r *redisRegistry) Get(ctx context.Context, taskID string) (*task.Record, error) {
	b, err := r.client.Get(ctx, redisPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: couldn't get %s: %w", taskID, err)
	}
	var v task.Record
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("registry: couldn't decode %s: %w", taskID, err)
	}
	return &v, nil
}

func (r *redisRegistry) Put(ctx context.Context, v *task.Record) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("registry: couldn't encode %s: %w", v.TaskID, err)
	}
	if err := r.client.Set(ctx, redisPrefix+v.TaskID, b, redisTTL).Err(); err != nil {
		return fmt.Errorf("registry: couldn't put %s: %w", v.TaskID, err)
	}
	return nil
}
