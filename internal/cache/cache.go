/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/blnkfinance/artify/config"
	redis_db "github.com/blnkfinance/artify/internal/redis-db"
)

// ErrCacheMiss is returned by Get when the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache: key is missing")

// Cache is a keyed store with per entry expiry.
type Cache interface {
	// Set stores value under key. A zero ttl falls back to the store default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the value stored under key into data, which must be a pointer.
	// Returns ErrCacheMiss when nothing is stored.
	Get(ctx context.Context, key string, data interface{}) error

	Delete(ctx context.Context, key string) error
}

// NewCache builds the store selected by jobs.store.
func NewCache(cfg *config.Configuration) (Cache, error) {
	if cfg.Jobs.Store != config.JobStoreRedis {
		return NewMemoryCache(cfg.Jobs.TTL), nil
	}

	client, err := redis_db.NewRedisClient(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return NewRedisCache(client.Client()), nil
}
