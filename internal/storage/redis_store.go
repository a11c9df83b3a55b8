package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"newsplugin/internal/model"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a stored record does not exist.
var ErrNotFound = errors.New("not found")

// RedisStore backs the option store, per-user meta, the feed registry and
// the feed body cache.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

const (
	optionsKey = "newsplugin:options"
	feedsKey   = "newsplugin:feeds"
)

func userMetaKey(uid int64) string {
	return fmt.Sprintf("newsplugin:usermeta:%d", uid)
}

func feedCacheKey(key string) string {
	return fmt.Sprintf("newsplugin:feedcache:%s", key)
}

// GetOption returns a global option value; ok is false when unset.
func (s *RedisStore) GetOption(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, optionsKey, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetOption(ctx context.Context, key, value string) error {
	return s.rdb.HSet(ctx, optionsKey, key, value).Err()
}

func (s *RedisStore) DeleteOption(ctx context.Context, key string) error {
	return s.rdb.HDel(ctx, optionsKey, key).Err()
}

// GetUserMeta returns a per-user preference value; ok is false when unset.
func (s *RedisStore) GetUserMeta(ctx context.Context, uid int64, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, userMetaKey(uid), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetUserMeta(ctx context.Context, uid int64, key, value string) error {
	return s.rdb.HSet(ctx, userMetaKey(uid), key, value).Err()
}

func (s *RedisStore) DeleteUserMeta(ctx context.Context, uid int64, key string) error {
	return s.rdb.HDel(ctx, userMetaKey(uid), key).Err()
}

// SaveFeed stores a feed instance configuration under its id.
func (s *RedisStore) SaveFeed(ctx context.Context, cfg model.FeedConfig) error {
	if cfg.ID == "" {
		return errors.New("feed instance id is empty")
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, feedsKey, cfg.ID, b).Err()
}

// GetFeed loads a feed instance configuration.
func (s *RedisStore) GetFeed(ctx context.Context, id string) (model.FeedConfig, error) {
	var cfg model.FeedConfig
	b, err := s.rdb.HGet(ctx, feedsKey, id).Bytes()
	if err == redis.Nil {
		return cfg, fmt.Errorf("feed %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode feed %s: %w", id, err)
	}
	return cfg, nil
}

// ListFeeds returns all stored feed instances ordered by id.
func (s *RedisStore) ListFeeds(ctx context.Context) ([]model.FeedConfig, error) {
	all, err := s.rdb.HGetAll(ctx, feedsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.FeedConfig, 0, len(all))
	for id, raw := range all {
		var cfg model.FeedConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode feed %s: %w", id, err)
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteFeed removes a feed instance configuration.
func (s *RedisStore) DeleteFeed(ctx context.Context, id string) error {
	return s.rdb.HDel(ctx, feedsKey, id).Err()
}

// GetCachedFeed returns a cached feed body.
func (s *RedisStore) GetCachedFeed(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, feedCacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// PutCachedFeed caches a feed body for the given lifetime.
func (s *RedisStore) PutCachedFeed(ctx context.Context, key string, body []byte, lifetime time.Duration) error {
	if lifetime <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, feedCacheKey(key), body, lifetime).Err()
}

// FlushFeedCache drops every cached feed body and returns how many were
// removed.
func (s *RedisStore) FlushFeedCache(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, feedCacheKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}
