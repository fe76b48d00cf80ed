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

package artify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blnkfinance/artify/internal/cache"
	"github.com/blnkfinance/artify/model"
)

// ErrJobNotTracked is returned when a job expired or was never created.
var ErrJobNotTracked = errors.New("generation job is not tracked")

const (
	jobKeyPrefix = "generation:"

	// maxRunningProgress keeps 100 reserved for succeeded jobs.
	maxRunningProgress = 99
)

// JobTracker keeps generation job state in a cache.Cache with a TTL. Each job is only
// written by the instance running it, so the local mutex is enough to serialise
// read-modify-write updates even when the store is shared.
type JobTracker struct {
	store cache.Cache
	ttl   time.Duration
	mu    sync.Mutex
	now   func() time.Time
}

func NewJobTracker(store cache.Cache, ttl time.Duration) *JobTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobTracker{store: store, ttl: ttl, now: time.Now}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Create stores job as pending at progress 0.
func (t *JobTracker) Create(ctx context.Context, job *model.GenerationJob) error {
	now := t.now().UTC()
	job.Status = model.JobPending
	job.Progress = 0
	job.ResultURL = nil
	job.Error = ""
	job.CreatedAt = now
	job.UpdatedAt = now
	return t.store.Set(ctx, jobKey(job.RequestID), job, t.ttl)
}

// Get returns the job for id. Unknown or expired ids read as pending at 0 with no result.
func (t *JobTracker) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	job, err := t.load(ctx, id)
	if errors.Is(err, ErrJobNotTracked) {
		return &model.GenerationJob{RequestID: id, Status: model.JobPending}, nil
	}
	return job, err
}

func (t *JobTracker) load(ctx context.Context, id string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := t.store.Get(ctx, jobKey(id), &job)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrJobNotTracked
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (t *JobTracker) update(ctx context.Context, id string, apply func(job *model.GenerationJob) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.load(ctx, id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}
	if !apply(job) {
		return nil
	}
	job.UpdatedAt = t.now().UTC()
	return t.store.Set(ctx, jobKey(id), job, t.ttl)
}

// UpdateProgress raises the job's progress to value. Lower values are ignored and
// the result is capped at 99 until the job completes.
func (t *JobTracker) UpdateProgress(ctx context.Context, id string, value int) error {
	value = min(max(value, 0), maxRunningProgress)
	return t.update(ctx, id, func(job *model.GenerationJob) bool {
		if value <= job.Progress {
			return false
		}
		job.Progress = value
		return true
	})
}

// Complete marks the job succeeded with its result URL.
func (t *JobTracker) Complete(ctx context.Context, id, resultURL string) error {
	if resultURL == "" {
		return errors.New("result url is required to complete a job")
	}
	return t.update(ctx, id, func(job *model.GenerationJob) bool {
		job.Status = model.JobSucceeded
		job.Progress = 100
		job.ResultURL = &resultURL
		return true
	})
}

// Fail marks the job failed. Progress keeps its last value.
func (t *JobTracker) Fail(ctx context.Context, id, reason string) error {
	return t.update(ctx, id, func(job *model.GenerationJob) bool {
		job.Status = model.JobFailed
		job.Error = reason
		return true
	})
}
