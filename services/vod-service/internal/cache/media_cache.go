// Package cache holds the redis read-through cache for media records
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

const mediaKeyPrefix = "vod:media:"

// mediaCache stores serialized media records in redis
type mediaCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMediaCache creates a media cache whose entries live for ttl
func NewMediaCache(rdb *redis.Client, ttl time.Duration) *mediaCache {
	return &mediaCache{
		rdb: rdb,
		ttl: ttl,
	}
}

func mediaKey(id string) string {
	return mediaKeyPrefix + id
}

// Get returns the cached media, or nil on a miss
func (c *mediaCache) Get(ctx context.Context, id string) (*models.Media, error) {
	data, err := c.rdb.Get(ctx, mediaKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read media cache: %w", err)
	}

	return decodeMedia(data)
}

// Set caches a media record
func (c *mediaCache) Set(ctx context.Context, media *models.Media) error {
	data, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to encode media for cache: %w", err)
	}

	if err := c.rdb.Set(ctx, mediaKey(media.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write media cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached record of a media
func (c *mediaCache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, mediaKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate media cache: %w", err)
	}
	return nil
}

func decodeMedia(data []byte) (*models.Media, error) {
	var media models.Media
	if err := json.Unmarshal(data, &media); err != nil {
		return nil, fmt.Errorf("failed to decode cached media: %w", err)
	}
	return &media, nil
}
