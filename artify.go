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
	"embed"
	"errors"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/database"
	"github.com/blnkfinance/artify/internal/cache"
	"github.com/blnkfinance/artify/internal/notification"
	"github.com/blnkfinance/artify/internal/replicate"
	"github.com/blnkfinance/artify/internal/storage"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Generator runs one image to image prediction and returns the output URL.
// onLogs receives the provider's free text log output as it grows.
type Generator interface {
	Run(ctx context.Context, input replicate.Input, onLogs func(logs string)) (string, error)
}

// Archiver copies a finished image to storage the service controls.
type Archiver interface {
	Archive(ctx context.Context, name, sourceURL string) (string, error)
}

// Artify holds the domain services behind the HTTP API.
type Artify struct {
	config     *config.Configuration
	datasource database.IDataSource
	tracker    *JobTracker
	generator  Generator
	archiver   Archiver
	queue      *Queue
	analytics  posthog.Client
	pool       *workerpool.WorkerPool
	now        func() time.Time
}

type Option func(*Artify)

func WithGenerator(generator Generator) Option {
	return func(a *Artify) { a.generator = generator }
}

func WithArchiver(archiver Archiver) Option {
	return func(a *Artify) { a.archiver = archiver }
}

// WithJobStore replaces the job store selected by jobs.store.
func WithJobStore(store cache.Cache) Option {
	return func(a *Artify) { a.tracker = NewJobTracker(store, a.config.Jobs.TTL) }
}

func WithQueue(queue *Queue) Option {
	return func(a *Artify) { a.queue = queue }
}

func WithAnalytics(client posthog.Client) Option {
	return func(a *Artify) { a.analytics = client }
}

// WithClock overrides time.Now, used for day boundaries and job timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Artify) {
		a.now = now
		if a.tracker != nil {
			a.tracker.now = now
		}
	}
}

// NewArtify wires the services from the loaded configuration. Components that are
// not configured stay disabled: no api token means no generator, no bucket means
// no archiving and no webhook url means no queue.
func NewArtify(db database.IDataSource, opts ...Option) (*Artify, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	a := &Artify{config: cfg, datasource: db, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	if a.tracker == nil {
		store, err := cache.NewCache(cfg)
		if err != nil {
			return nil, err
		}
		a.tracker = NewJobTracker(store, cfg.Jobs.TTL)
	}
	a.tracker.now = a.now

	if a.generator == nil && cfg.Generation.ApiToken != "" {
		client, err := replicate.NewClient(cfg.Generation)
		if err != nil {
			return nil, err
		}
		a.generator = client
	}

	if a.archiver == nil && cfg.Storage.BucketName != "" {
		archiver, err := storage.NewS3Archiver(context.Background(), cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.archiver = archiver
	}

	if a.queue == nil && cfg.Notification.Webhook.Url != "" {
		queue, err := NewQueue(cfg)
		if err != nil {
			return nil, err
		}
		a.queue = queue
	}
	if a.queue != nil {
		notification.RegisterWebhookSender(func(event string, payload interface{}) error {
			return a.SendWebhook(NewWebhook{Event: event, Payload: payload})
		})
	}

	if a.analytics == nil && cfg.Analytics.PostHogKey != "" {
		client, err := posthog.NewWithConfig(cfg.Analytics.PostHogKey, posthog.Config{Endpoint: cfg.Analytics.PostHogEndpoint})
		if err != nil {
			logrus.WithError(err).Warn("analytics disabled")
		} else {
			a.analytics = client
		}
	}

	maxConcurrent := cfg.Generation.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	a.pool = workerpool.New(maxConcurrent)

	return a, nil
}

// Close waits for running generations and releases the queue and analytics clients.
func (a *Artify) Close() error {
	a.pool.StopWait()

	var err error
	if a.queue != nil {
		err = errors.Join(err, a.queue.Close())
	}
	if a.analytics != nil {
		err = errors.Join(err, a.analytics.Close())
	}
	return err
}

// Config returns the configuration the service was built with.
func (a *Artify) Config() *config.Configuration {
	return a.config
}

func (a *Artify) track(distinctID, event string, properties posthog.Properties) {
	if a.analytics == nil {
		return
	}
	if distinctID == "" {
		distinctID = "anonymous"
	}
	if err := a.analytics.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		logrus.WithError(err).Debug("analytics event dropped")
	}
}
