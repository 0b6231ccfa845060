// Package cache holds read-path caches. Nothing here is global: callers build a
// cache with an explicit TTL and pass it to the service that reads through it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ErrSuperseded is returned by Set when the loan was invalidated after the
// projection's Lookup, so the projection may predate the latest write.
var ErrSuperseded = errors.New("schedule cache: projection superseded")

// generationTTL outlives any in-flight read. An expired generation reads as 0,
// which still rejects writers holding a later one.
const generationTTL = 24 * time.Hour

// Lookup is the result of a cache read. Generation must be handed back to Set.
type Lookup struct {
	Entries    []*domain.ScheduleEntry
	Found      bool
	Generation int64
}

// ScheduleCache stores full schedule projections keyed by loan ID.
type ScheduleCache interface {
	// Get returns the cached projection, if any, with the loan's current generation
	Get(ctx context.Context, loanID uuid.UUID) (Lookup, error)

	// Set stores a projection for the configured TTL unless the loan was
	// invalidated since the Lookup that produced generation
	Set(ctx context.Context, loanID uuid.UUID, generation int64, entries []*domain.ScheduleEntry) error

	// Invalidate drops the projection of one loan and advances its generation
	Invalidate(ctx context.Context, loanID uuid.UUID) error
}

type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) *RedisScheduleCache {
	return &RedisScheduleCache{client: client, ttl: ttl}
}

func scheduleKey(loanID uuid.UUID) string {
	return fmt.Sprintf("loan:%s:schedule", loanID)
}

func generationKey(loanID uuid.UUID) string {
	return fmt.Sprintf("loan:%s:schedule:gen", loanID)
}

func (c *RedisScheduleCache) Get(ctx context.Context, loanID uuid.UUID) (Lookup, error) {
	var genCmd, scheduleCmd *redis.StringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		genCmd = pipe.Get(ctx, generationKey(loanID))
		scheduleCmd = pipe.Get(ctx, scheduleKey(loanID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Lookup{}, err
	}

	generation, err := readGeneration(genCmd)
	if err != nil {
		return Lookup{}, err
	}
	lookup := Lookup{Generation: generation}

	raw, err := scheduleCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return lookup, nil
	}
	if err != nil {
		return Lookup{}, err
	}

	if err := json.Unmarshal(raw, &lookup.Entries); err != nil {
		return Lookup{}, fmt.Errorf("decode cached schedule: %w", err)
	}
	lookup.Found = true
	return lookup, nil
}

func (c *RedisScheduleCache) Set(ctx context.Context, loanID uuid.UUID, generation int64, entries []*domain.ScheduleEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	genKey := generationKey(loanID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(tx.Get(ctx, genKey))
		if err != nil {
			return err
		}
		if current != generation {
			return ErrSuperseded
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, scheduleKey(loanID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrSuperseded
	}
	return err
}

func (c *RedisScheduleCache) Invalidate(ctx context.Context, loanID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(loanID))
		pipe.Expire(ctx, generationKey(loanID), generationTTL)
		pipe.Del(ctx, scheduleKey(loanID))
		return nil
	})
	return err
}

func readGeneration(cmd *redis.StringCmd) (int64, error) {
	generation, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// NopScheduleCache never stores anything; every Get is a miss.
type NopScheduleCache struct{}

func (NopScheduleCache) Get(context.Context, uuid.UUID) (Lookup, error) {
	return Lookup{}, nil
}

func (NopScheduleCache) Set(context.Context, uuid.UUID, int64, []*domain.ScheduleEntry) error {
	return nil
}

func (NopScheduleCache) Invalidate(context.Context, uuid.UUID) error {
	return nil
}
