package coord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"evbin/internal/errs"
	"evbin/internal/scan"

	redis "github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long run keys survive a crashed run.
	DefaultTTL = time.Hour
	// pollInterval is the BLPOP timeout between context checks.
	pollInterval = time.Second
)

// RedisComm is a rank of a multi-process run. Ranks of the same run share
// a run id and a Redis server; keys live under evbin:<run>:.
type RedisComm struct {
	c    *redis.Client
	run  string
	rank int
	size int
	ttl  time.Duration
}

// DialRedis connects to addr and checks the server answers.
func DialRedis(ctx context.Context, addr, run string, rank, size int) (*RedisComm, error) {
	return NewRedisComm(ctx, redis.NewClient(&redis.Options{Addr: addr}), run, rank, size)
}

// NewRedisComm wraps c; the comm owns c and closes it on Close.
func NewRedisComm(ctx context.Context, c *redis.Client, run string, rank, size int) (*RedisComm, error) {
	if run == "" {
		return nil, fmt.Errorf("%w: run id not specified", errs.ErrInvalidArgument)
	}
	if size <= 0 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d of %d", errs.ErrInvalidArgument, rank, size)
	}
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: redis unreachable: %w", errs.ErrIO, err)
	}
	return &RedisComm{c: c, run: run, rank: rank, size: size, ttl: DefaultTTL}, nil
}

func (rc *RedisComm) Rank() int    { return rc.rank }
func (rc *RedisComm) Size() int    { return rc.size }
func (rc *RedisComm) Close() error { return rc.c.Close() }

func (rc *RedisComm) bcastKey(rank int) string {
	return fmt.Sprintf("evbin:%s:bcast:%d", rc.run, rank)
}

func (rc *RedisComm) reduceKey() string {
	return fmt.Sprintf("evbin:%s:reduce", rc.run)
}

// pop blocks on key until a value arrives or ctx is done.
func (rc *RedisComm) pop(ctx context.Context, key string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		kv, err := rc.c.BLPop(ctx, pollInterval, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return "", cerr
			}
			return "", fmt.Errorf("%w: blpop %s: %w", errs.ErrIO, key, err)
		}
		return kv[1], nil
	}
}

func (rc *RedisComm) BroadcastCatalog(ctx context.Context, cat *scan.Catalog) (*scan.Catalog, error) {
	if rc.rank != 0 {
		payload, err := rc.pop(ctx, rc.bcastKey(rc.rank))
		if err != nil {
			return nil, err
		}
		var got scan.Catalog
		if err := got.UnmarshalBinary([]byte(payload)); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return &got, nil
	}

	if cat == nil {
		return nil, fmt.Errorf("%w: rank 0 must provide the catalog", errs.ErrInvalidArgument)
	}
	payload, err := cat.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	_, err = rc.c.Pipelined(ctx, func(p redis.Pipeliner) error {
		for r := 1; r < rc.size; r++ {
			p.RPush(ctx, rc.bcastKey(r), payload)
			p.Expire(ctx, rc.bcastKey(r), rc.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: broadcast catalog: %w", errs.ErrIO, err)
	}
	return cat, nil
}

func (rc *RedisComm) ReduceMax(ctx context.Context, v float64) (float64, error) {
	if rc.rank != 0 {
		_, err := rc.c.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.RPush(ctx, rc.reduceKey(), strconv.FormatFloat(v, 'g', -1, 64))
			p.Expire(ctx, rc.reduceKey(), rc.ttl)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("%w: reduce: %w", errs.ErrIO, err)
		}
		return v, nil
	}

	maxV := v
	for range rc.size - 1 {
		s, err := rc.pop(ctx, rc.reduceKey())
		if err != nil {
			return 0, err
		}
		other, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: reduce value %q: %w", errs.ErrIO, s, err)
		}
		maxV = max(maxV, other)
	}
	return maxV, nil
}
