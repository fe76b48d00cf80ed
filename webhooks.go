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
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/config"
)

// NewWebhook represents the structure of a webhook notification.
// It includes an event type and associated payload data.
type NewWebhook struct {
	Event   string      `json:"event"` // The event type that triggered the webhook.
	Payload interface{} `json:"data"`  // The data associated with the event.
}

var webhookClient = resty.New().SetTimeout(10 * time.Second).SetLogger(logrus.StandardLogger())

// SendWebhook enqueues a webhook notification task. It does nothing when no
// webhook url is configured.
func (a *Artify) SendWebhook(newWebhook NewWebhook) error {
	if a.queue == nil || a.config.Notification.Webhook.Url == "" {
		return nil
	}
	return a.queue.enqueueWebhook(newWebhook)
}

// processHTTP posts data to the configured webhook url.
func processHTTP(ctx context.Context, conf *config.Configuration, data NewWebhook) error {
	resp, err := webhookClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(conf.Notification.Webhook.Headers).
		SetBody(data).
		Post(conf.Notification.Webhook.Url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s rejected with status %d", data.Event, resp.StatusCode())
	}

	logrus.WithFields(logrus.Fields{"event": data.Event, "status": resp.StatusCode()}).Info("webhook notification sent")
	return nil
}

// ProcessWebhook delivers a queued webhook notification. Returning an error lets
// asynq retry the task.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("invalid webhook task payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return processHTTP(ctx, conf, payload)
}
