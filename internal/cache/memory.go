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
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps entries in process memory. Entries are stored as JSON so
// readers never share mutable state with writers.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a MemoryCache whose expired entries are purged every defaultTTL.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryCache{store: gocache.New(defaultTTL, defaultTTL)}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.store.Set(key, data, ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, data interface{}) error {
	raw, found := m.store.Get(key)
	if !found {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw.([]byte), data)
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet purged.
func (m *MemoryCache) Len() int {
	return m.store.ItemCount()
}
