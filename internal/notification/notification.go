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
package notification

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/blnkfinance/artify/config"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var client = resty.New().SetTimeout(10 * time.Second).SetLogger(logrus.StandardLogger())

// WebhookSender forwards an event to the service's outbound webhook queue.
type WebhookSender func(event string, payload interface{}) error

var (
	senderMu      sync.RWMutex
	webhookSender WebhookSender
)

// RegisterWebhookSender lets the service receive system errors as webhooks
// without this package importing it.
func RegisterWebhookSender(sender WebhookSender) {
	senderMu.Lock()
	defer senderMu.Unlock()
	webhookSender = sender
}

func registeredSender() WebhookSender {
	senderMu.RLock()
	defer senderMu.RUnlock()
	return webhookSender
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

func slackMessage(projectName string, err error, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"blocks": []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Error From %s 🐞", projectName), Emoji: true}},
			{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
			{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))}}},
		},
	}
}

// SlackNotification posts err to the configured Slack webhook.
func SlackNotification(err error) error {
	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		return cfgErr
	}

	resp, postErr := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(slackMessage(conf.ProjectName, err, time.Now())).
		Post(conf.Notification.Slack.WebhookUrl)
	if postErr != nil {
		return postErr
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned %s", resp.Status())
	}
	return nil
}

// NotifyError logs systemError and forwards it to Slack when a webhook is configured.
// It never blocks the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			if err := SlackNotification(systemError); err != nil {
				logrus.WithError(err).Warn("slack notification failed")
			}
		}

		if sender := registeredSender(); sender != nil {
			payload := map[string]interface{}{"error": systemError.Error(), "time": time.Now().UTC()}
			if err := sender("system.error", payload); err != nil {
				logrus.WithError(err).Warn("error webhook failed")
			}
		}
	}(systemError)
}
