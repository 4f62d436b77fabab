package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"interview-planner/internal/rules"
)

// DashboardCache holds built week dashboards. Every invalidation bumps the week's
// version; Set only stores days built from the version Get returned, so a build
// that raced with a write is dropped instead of cached.
type DashboardCache interface {
	// Get returns the cached days, or hit == false, along with the current version.
	Get(ctx context.Context, week rules.WeekNumber) (days [5]rules.DayDashboard, version int64, hit bool, err error)
	Set(ctx context.Context, week rules.WeekNumber, version int64, days [5]rules.DayDashboard) error
	Invalidate(ctx context.Context, weeks ...rules.WeekNumber) error
}

var errStaleDashboard = errors.New("dashboard invalidated while it was built")

type redisDashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDashboardCache(client *redis.Client, ttl time.Duration) DashboardCache {
	return &redisDashboardCache{client: client, ttl: ttl}
}

func dashboardKey(week rules.WeekNumber) string {
	return fmt.Sprintf("dashboard:%d", int(week))
}

func dashboardVersionKey(week rules.WeekNumber) string {
	return dashboardKey(week) + ":version"
}

func (r *redisDashboardCache) Get(ctx context.Context, week rules.WeekNumber) ([5]rules.DayDashboard, int64, bool, error) {
	var days [5]rules.DayDashboard
	vals, err := r.client.MGet(ctx, dashboardKey(week), dashboardVersionKey(week)).Result()
	if err != nil {
		return days, 0, false, fmt.Errorf("redis mget %s: %w", dashboardKey(week), err)
	}
	var version int64
	if v, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return days, 0, false, fmt.Errorf("parse %s: %w", dashboardVersionKey(week), err)
		}
	}
	data, ok := vals[0].(string)
	if !ok {
		return days, version, false, nil
	}
	if err := json.Unmarshal([]byte(data), &days); err != nil {
		return days, version, false, fmt.Errorf("decode cached dashboard: %w", err)
	}
	return days, version, true, nil
}

func (r *redisDashboardCache) Set(ctx context.Context, week rules.WeekNumber, version int64, days [5]rules.DayDashboard) error {
	data, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	key, vkey := dashboardKey(week), dashboardVersionKey(week)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errStaleDashboard
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, errStaleDashboard) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *redisDashboardCache) Invalidate(ctx context.Context, weeks ...rules.WeekNumber) error {
	if len(weeks) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range weeks {
			pipe.Del(ctx, dashboardKey(w))
			pipe.Incr(ctx, dashboardVersionKey(w))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
