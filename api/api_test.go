package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/database/mocks"
	"github.com/blnkfinance/artify/internal/cache"
	"github.com/blnkfinance/artify/internal/replicate"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) *httptest.ResponseRecorder {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		_ = json.NewDecoder(bytes.NewReader(resp.Body.Bytes())).Decode(s.Response)
	}
	return resp
}

func toJSON(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

type stubGenerator struct {
	url string
}

func (s stubGenerator) Run(_ context.Context, _ replicate.Input, onLogs func(string)) (string, error) {
	onLogs("50%|█████     | 10/20")
	return s.url, nil
}

func baseConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "Artify",
		Server:      config.ServerConfig{SecretKey: "admin-secret"},
		Generation: config.GenerationConfig{
			Timeout:       5 * time.Second,
			MaxConcurrent: 2,
			DefaultStyle:  config.DEFAULT_STYLE,
		},
		Jobs:  config.JobsConfig{Store: config.JobStoreMemory, TTL: time.Minute},
		Share: config.ShareConfig{FetchTimeout: 5 * time.Second, CacheMaxAge: 86400},
	}
}

// setupRouter builds the API over a mocked datasource. mutate adjusts the config before wiring.
func setupRouter(t *testing.T, ds *mocks.MockDataSource, mutate func(*config.Configuration), opts ...artify.Option) (*gin.Engine, *artify.Artify) {
	t.Helper()
	cfg := baseConfig()
	if mutate != nil {
		mutate(cfg)
	}
	config.MockConfig(cfg)

	opts = append([]artify.Option{artify.WithJobStore(cache.NewMemoryCache(time.Minute))}, opts...)
	service, err := artify.NewArtify(ds, opts...)
	require.NoError(t, err)

	return NewAPI(service).Router(), service
}
