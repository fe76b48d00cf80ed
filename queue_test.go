package artify

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify/config"
)

func TestNewQueue_InvalidRedis(t *testing.T) {
	_, err := NewQueue(&config.Configuration{})
	assert.Error(t, err)
}

func TestQueue_EnqueueWebhook(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{WebhookQueue: "artify_hooks", MaxRetry: 3},
	}

	q, err := NewQueue(cfg)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.enqueueWebhook(NewWebhook{Event: "generation.completed", Payload: map[string]string{"request_id": "gen_1"}}))

	keys := queueKeys(mr, "artify_hooks")
	require.NotEmpty(t, keys)

	var stored []byte
	for _, key := range keys {
		if !mr.Exists(key) {
			continue
		}
		if mr.Type(key) == "hash" {
			raw := mr.HGet(key, "msg")
			stored = []byte(raw)
		}
	}
	require.NotEmpty(t, stored, "task message should be stored")
	assert.Contains(t, string(stored), "artify_hooks")
	assert.Contains(t, string(stored), "generation.completed")
}

func TestQueue_DefaultQueueName(t *testing.T) {
	q := &Queue{}
	assert.Equal(t, config.DEFAULT_WEBHOOK_QUEUE, q.webhookQueue())
}
