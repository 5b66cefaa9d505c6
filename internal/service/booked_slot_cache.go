package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// RedisBookedSlotsKeyPrefix is followed by "{doctorID}:{YYYY-MM-DD}".
	RedisBookedSlotsKeyPrefix = "slots:booked:"
	// RedisSlotGenerationKeyPrefix counts invalidations of one doctor-day.
	RedisSlotGenerationKeyPrefix = "slots:gen:"

	// Must outlive any read-then-fill window; an expired counter reads as 0.
	slotGenerationTTL = 24 * time.Hour

	// Timeout for individual Redis operations
	redisOpTimeout = 2 * time.Second
)

// BookedSlotCache caches the booked "HH:mm" labels of one doctor-day.
// It is a read-side optimisation; the booking transaction never reads it.
//
// A filler takes Generation before querying the database and hands it to
// Set. Set stores nothing when an Invalidate landed in between, so a
// result read before a booking committed never outlives that booking's
// invalidation.
type BookedSlotCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, doctorID int64, date string) (slots []string, ok bool, err error)
	Generation(ctx context.Context, doctorID int64, date string) (int64, error)
	// Set reports stored=false when the generation moved on.
	Set(ctx context.Context, doctorID int64, date string, generation int64, slots []string) (stored bool, err error)
	Invalidate(ctx context.Context, doctorID int64, date string) error
}

var errGenerationMoved = errors.New("booked slot generation moved")

type redisBookedSlotCache struct {
	redisClient *redis.Client
	log         *logrus.Logger
	ttl         time.Duration
}

func NewRedisBookedSlotCache(redisClient *redis.Client, log *logrus.Logger, ttl time.Duration) BookedSlotCache {
	return &redisBookedSlotCache{
		redisClient: redisClient,
		log:         log,
		ttl:         ttl,
	}
}

func BookedSlotsKey(doctorID int64, date string) string {
	return fmt.Sprintf("%s%d:%s", RedisBookedSlotsKeyPrefix, doctorID, date)
}

func SlotGenerationKey(doctorID int64, date string) string {
	return fmt.Sprintf("%s%d:%s", RedisSlotGenerationKeyPrefix, doctorID, date)
}

func (c *redisBookedSlotCache) Get(ctx context.Context, doctorID int64, date string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := c.redisClient.Get(ctx, BookedSlotsKey(doctorID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get booked slots for doctor %d on %s: %w", doctorID, date, err)
	}

	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		// a corrupt entry is treated as a miss and overwritten by the next Set
		c.log.Warnf("Discarding unreadable booked slot cache entry for doctor %d on %s: %+v", doctorID, date, err)
		return nil, false, nil
	}
	return slots, true, nil
}

func (c *redisBookedSlotCache) Generation(ctx context.Context, doctorID int64, date string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	generation, err := readGeneration(ctx, c.redisClient, SlotGenerationKey(doctorID, date))
	if err != nil {
		return 0, fmt.Errorf("get slot generation for doctor %d on %s: %w", doctorID, date, err)
	}
	return generation, nil
}

func readGeneration(ctx context.Context, cmd redis.Cmdable, key string) (int64, error) {
	generation, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

func (c *redisBookedSlotCache) Set(ctx context.Context, doctorID int64, date string, generation int64, slots []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if slots == nil {
		slots = []string{}
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return false, err
	}

	genKey := SlotGenerationKey(doctorID, date)
	err = c.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != generation {
			return errGenerationMoved
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, BookedSlotsKey(doctorID, date), string(payload), c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errGenerationMoved), errors.Is(err, redis.TxFailedErr):
		c.log.Debugf("Skipped stale booked slot fill for doctor %d on %s", doctorID, date)
		return false, nil
	default:
		return false, fmt.Errorf("set booked slots for doctor %d on %s: %w", doctorID, date, err)
	}
}

// Invalidate bumps the generation and drops the entry in one MULTI, so a
// filler either sees the new generation or its entry is deleted after it.
func (c *redisBookedSlotCache) Invalidate(ctx context.Context, doctorID int64, date string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	genKey := SlotGenerationKey(doctorID, date)
	_, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, slotGenerationTTL)
		pipe.Del(ctx, BookedSlotsKey(doctorID, date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate booked slots for doctor %d on %s: %w", doctorID, date, err)
	}
	c.log.Debugf("Invalidated booked slot cache for doctor %d on %s", doctorID, date)
	return nil
}
