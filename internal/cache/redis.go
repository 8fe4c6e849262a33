package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"routeopt/internal/model"
)

// Redis shares cached results between API replicas.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(opt), prefix: "solve:result:"}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (model.SolveResponse, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SolveResponse{}, ErrMiss
	}
	if err != nil {
		return model.SolveResponse{}, err
	}
	var resp model.SolveResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return model.SolveResponse{}, err
	}
	return resp, nil
}

func (r *Redis) Set(ctx context.Context, key string, resp model.SolveResponse, ttl time.Duration) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, b, ttl).Err()
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.rdb.Close() }
