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
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/config"
	redis_db "github.com/blnkfinance/artify/internal/redis-db"
)

// Queue enqueues background tasks onto Redis for the artify workers process.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	conf      config.QueueConfig
}

// QueueStats summarises one asynq queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
	Processed int    `json:"processed"`
}

// NewQueue initializes a Queue backed by the configured Redis instance.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	return &Queue{
		Client:    asynq.NewClient(opt),
		Inspector: asynq.NewInspector(opt),
		conf:      conf.Queue,
	}, nil
}

func (q *Queue) webhookQueue() string {
	if q.conf.WebhookQueue == "" {
		return config.DEFAULT_WEBHOOK_QUEUE
	}
	return q.conf.WebhookQueue
}

func (q *Queue) enqueueWebhook(webhook NewWebhook) error {
	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}

	options := []asynq.Option{asynq.Queue(q.webhookQueue())}
	if q.conf.MaxRetry > 0 {
		options = append(options, asynq.MaxRetry(q.conf.MaxRetry))
	}
	task := asynq.NewTask(q.webhookQueue(), payload, options...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"event": webhook.Event, "task_id": info.ID}).Debug("webhook enqueued")
	return nil
}

// Stats reports the webhook queue's task counts.
func (q *Queue) Stats() (*QueueStats, error) {
	info, err := q.Inspector.GetQueueInfo(q.webhookQueue())
	if err != nil {
		return nil, err
	}
	return &QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Failed:    info.Failed,
		Processed: info.Processed,
	}, nil
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		logrus.WithError(err).Warn("closing queue inspector")
	}
	return q.Client.Close()
}

// QueueStats reports the webhook queue, or nil when webhooks are disabled.
func (a *Artify) QueueStats() (*QueueStats, error) {
	if a.queue == nil {
		return nil, nil
	}
	return a.queue.Stats()
}
