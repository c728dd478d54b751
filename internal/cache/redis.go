// Package cache кэширует вычисленные слоты в Redis.
// Ключи слотов содержат версию репетитора; запись правила, исключения или бронирования
// увеличивает версию, и старые ключи просто перестают читаться, а TTL их убирает.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/redis/go-redis/v9"
)

var _ service.SlotCache = (*SlotCache)(nil)

const keyPrefix = "tutor_scheduler:slots"

type SlotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewClient подключается к Redis и проверяет соединение
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	const op = "cache.NewClient"

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}

func NewSlotCache(client redis.Cmdable, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func versionKey(tutorID int64) string {
	return fmt.Sprintf("%s:%d:version", keyPrefix, tutorID)
}

func slotsKey(tutorID, version int64, from, to time.Time) string {
	return fmt.Sprintf("%s:%d:v%d:%s:%s", keyPrefix, tutorID, version, from.Format(time.DateOnly), to.Format(time.DateOnly))
}

// Version текущая версия слотов репетитора; 0 если её ещё не было
func (c *SlotCache) Version(ctx context.Context, tutorID int64) (int64, error) {
	const op = "cache.SlotCache.Version"

	v, err := c.client.Get(ctx, versionKey(tutorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (c *SlotCache) Get(ctx context.Context, tutorID, version int64, from, to time.Time) ([]model.Slot, bool, error) {
	const op = "cache.SlotCache.Get"

	data, err := c.client.Get(ctx, slotsKey(tutorID, version, from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var slots []model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("%s: decode: %w", op, err)
	}
	return slots, true, nil
}

// Put сохраняет слоты под версией, прочитанной до загрузки данных.
// Если версия успела смениться, запись ляжет под устаревший ключ и не будет прочитана.
func (c *SlotCache) Put(ctx context.Context, tutorID, version int64, from, to time.Time, slots []model.Slot) error {
	const op = "cache.SlotCache.Put"

	if slots == nil {
		slots = []model.Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	if err := c.client.Set(ctx, slotsKey(tutorID, version, from, to), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate увеличивает версию репетитора
func (c *SlotCache) Invalidate(ctx context.Context, tutorID int64) error {
	const op = "cache.SlotCache.Invalidate"

	if err := c.client.Incr(ctx, versionKey(tutorID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
