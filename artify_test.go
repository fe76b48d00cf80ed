package artify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/database/mocks"
	"github.com/blnkfinance/artify/internal/cache"
	"github.com/blnkfinance/artify/internal/replicate"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "Artify",
		Generation: config.GenerationConfig{
			Timeout:       5 * time.Second,
			MaxConcurrent: 4,
			DefaultStyle:  config.DEFAULT_STYLE,
		},
		Jobs: config.JobsConfig{Store: config.JobStoreMemory, TTL: time.Minute},
		Queue: config.QueueConfig{WebhookQueue: config.DEFAULT_WEBHOOK_QUEUE},
	}
}

func newTestArtify(t *testing.T, cfg *config.Configuration, ds *mocks.MockDataSource, opts ...Option) *Artify {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	config.MockConfig(cfg)

	opts = append([]Option{WithJobStore(cache.NewMemoryCache(time.Minute))}, opts...)
	a, err := NewArtify(ds, opts...)
	require.NoError(t, err)
	return a
}

type fakeGenerator struct {
	mu      sync.Mutex
	logs    []string
	url     string
	err     error
	panics  bool
	block   bool
	inputs  []replicate.Input
	observe func()
}

func (f *fakeGenerator) Run(ctx context.Context, input replicate.Input, onLogs func(logs string)) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.panics {
		panic("provider sdk exploded")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	var logs string
	for _, line := range f.logs {
		logs += line + "\n"
		onLogs(logs)
		if f.observe != nil {
			f.observe()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeGenerator) lastInput() replicate.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

type fakeArchiver struct {
	url string
	err error
}

func (f *fakeArchiver) Archive(_ context.Context, name, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://cdn.artify.test/generations/" + name + ".png", nil
}

var errProvider = errors.New("prediction failed: model returned no output")
