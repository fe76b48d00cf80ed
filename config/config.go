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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT          = "5001"
	DEFAULT_STYLE         = "ghibli"
	DEFAULT_PRICE         = "0.01"
	DEFAULT_NETWORK       = "base"
	DEFAULT_WEBHOOK_QUEUE = "webhook_queue"
	JobStoreMemory        = "memory"
	JobStoreRedis         = "redis"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"ARTIFY_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"ARTIFY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ARTIFY_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"ARTIFY_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"ARTIFY_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"ARTIFY_SERVER_PORT"`
	PublicURL string `json:"public_url" envconfig:"ARTIFY_SERVER_PUBLIC_URL"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ARTIFY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"ARTIFY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"ARTIFY_REDIS_SKIP_TLS_VERIFY"`
}

// GenerationConfig points at the hosted image generation API.
type GenerationConfig struct {
	ApiToken      string        `json:"api_token" envconfig:"ARTIFY_GENERATION_API_TOKEN"`
	BaseUrl       string        `json:"base_url" envconfig:"ARTIFY_GENERATION_BASE_URL"`
	ModelVersion  string        `json:"model_version" envconfig:"ARTIFY_GENERATION_MODEL_VERSION"`
	PollInterval  time.Duration `json:"poll_interval" envconfig:"ARTIFY_GENERATION_POLL_INTERVAL"`
	Timeout       time.Duration `json:"timeout" envconfig:"ARTIFY_GENERATION_TIMEOUT"`
	MaxConcurrent int           `json:"max_concurrent" envconfig:"ARTIFY_GENERATION_MAX_CONCURRENT"`
	DefaultStyle  string        `json:"default_style" envconfig:"ARTIFY_GENERATION_DEFAULT_STYLE"`
}

// JobsConfig selects where generation job state lives. The memory store only works
// for single instance deployments; use redis when running more than one server.
type JobsConfig struct {
	Store string        `json:"store" envconfig:"ARTIFY_JOBS_STORE"`
	TTL   time.Duration `json:"ttl" envconfig:"ARTIFY_JOBS_TTL"`
}

type PaymentConfig struct {
	Enabled           bool   `json:"enabled" envconfig:"ARTIFY_PAYMENT_ENABLED"`
	FacilitatorUrl    string `json:"facilitator_url" envconfig:"ARTIFY_PAYMENT_FACILITATOR_URL"`
	Network           string `json:"network" envconfig:"ARTIFY_PAYMENT_NETWORK"`
	PayTo             string `json:"pay_to" envconfig:"ARTIFY_PAYMENT_PAY_TO"`
	Asset             string `json:"asset" envconfig:"ARTIFY_PAYMENT_ASSET"`
	AssetName         string `json:"asset_name" envconfig:"ARTIFY_PAYMENT_ASSET_NAME"`
	AssetVersion      string `json:"asset_version" envconfig:"ARTIFY_PAYMENT_ASSET_VERSION"`
	AssetDecimals     int32  `json:"asset_decimals" envconfig:"ARTIFY_PAYMENT_ASSET_DECIMALS"`
	Price             string `json:"price" envconfig:"ARTIFY_PAYMENT_PRICE"`
	Description       string `json:"description" envconfig:"ARTIFY_PAYMENT_DESCRIPTION"`
	MaxTimeoutSeconds int    `json:"max_timeout_seconds" envconfig:"ARTIFY_PAYMENT_MAX_TIMEOUT_SECONDS"`
}

type ShareConfig struct {
	FetchTimeout time.Duration `json:"fetch_timeout" envconfig:"ARTIFY_SHARE_FETCH_TIMEOUT"`
	CacheMaxAge  int           `json:"cache_max_age" envconfig:"ARTIFY_SHARE_CACHE_MAX_AGE"`
}

// parseDuration reads a JSON duration written either as "90s" or as integer nanoseconds.
func parseDuration(raw json.RawMessage, into *time.Duration) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		d, err := time.ParseDuration(text)
		if err != nil {
			return err
		}
		*into = d
		return nil
	}
	var nanos int64
	if err := json.Unmarshal(raw, &nanos); err != nil {
		return fmt.Errorf("invalid duration %s", raw)
	}
	*into = time.Duration(nanos)
	return nil
}

func (g *GenerationConfig) UnmarshalJSON(data []byte) error {
	type plain GenerationConfig
	aux := struct {
		*plain
		PollInterval json.RawMessage `json:"poll_interval"`
		Timeout      json.RawMessage `json:"timeout"`
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration(aux.PollInterval, &g.PollInterval); err != nil {
		return fmt.Errorf("generation.poll_interval: %w", err)
	}
	if err := parseDuration(aux.Timeout, &g.Timeout); err != nil {
		return fmt.Errorf("generation.timeout: %w", err)
	}
	return nil
}

func (j *JobsConfig) UnmarshalJSON(data []byte) error {
	type plain JobsConfig
	aux := struct {
		*plain
		TTL json.RawMessage `json:"ttl"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration(aux.TTL, &j.TTL); err != nil {
		return fmt.Errorf("jobs.ttl: %w", err)
	}
	return nil
}

func (s *ShareConfig) UnmarshalJSON(data []byte) error {
	type plain ShareConfig
	aux := struct {
		*plain
		FetchTimeout json.RawMessage `json:"fetch_timeout"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration(aux.FetchTimeout, &s.FetchTimeout); err != nil {
		return fmt.Errorf("share.fetch_timeout: %w", err)
	}
	return nil
}

// StorageConfig enables archiving finished images to S3 compatible storage.
type StorageConfig struct {
	BucketName      string `json:"bucket_name" envconfig:"ARTIFY_STORAGE_BUCKET_NAME"`
	Region          string `json:"region" envconfig:"ARTIFY_STORAGE_REGION"`
	Endpoint        string `json:"endpoint" envconfig:"ARTIFY_STORAGE_ENDPOINT"`
	AccessKeyId     string `json:"access_key_id" envconfig:"ARTIFY_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" envconfig:"ARTIFY_STORAGE_SECRET_ACCESS_KEY"`
	PublicBaseUrl   string `json:"public_base_url" envconfig:"ARTIFY_STORAGE_PUBLIC_BASE_URL"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"ARTIFY_QUEUE_WEBHOOK_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"ARTIFY_QUEUE_MONITORING_PORT"`
	MaxRetry       int    `json:"max_retry" envconfig:"ARTIFY_QUEUE_MAX_RETRY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ARTIFY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ARTIFY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ARTIFY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type AnalyticsConfig struct {
	PostHogKey      string `json:"posthog_key" envconfig:"ARTIFY_ANALYTICS_POSTHOG_KEY"`
	PostHogEndpoint string `json:"posthog_endpoint" envconfig:"ARTIFY_ANALYTICS_POSTHOG_ENDPOINT"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"ARTIFY_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"ARTIFY_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"ARTIFY_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Generation      GenerationConfig `json:"generation"`
	Jobs            JobsConfig       `json:"jobs"`
	Payment         PaymentConfig    `json:"payment"`
	Share           ShareConfig      `json:"share"`
	Storage         StorageConfig    `json:"storage"`
	Queue           QueueConfig      `json:"queue"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Analytics       AnalyticsConfig  `json:"analytics"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("artify", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called artify.json with your config ❌")
	}
	return c, nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (cnf *Configuration) NeedsRedis() bool {
	return cnf.Jobs.Store == JobStoreRedis || cnf.Notification.Webhook.Url != ""
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Artify Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Generation.ApiToken = strings.TrimSpace(cnf.Generation.ApiToken)
	cnf.Jobs.Store = strings.ToLower(strings.TrimSpace(cnf.Jobs.Store))

	if cnf.Jobs.Store == "" {
		cnf.Jobs.Store = JobStoreMemory
	}
	if cnf.Jobs.Store != JobStoreMemory && cnf.Jobs.Store != JobStoreRedis {
		return errors.New("jobs store must be either memory or redis")
	}

	if cnf.NeedsRedis() && cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's required for the redis job store and webhooks.")
		return errors.New("redis DNS is required")
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Generation.BaseUrl == "" {
		cnf.Generation.BaseUrl = "https://api.replicate.com"
	}
	if cnf.Generation.PollInterval <= 0 {
		cnf.Generation.PollInterval = time.Second
	}
	if cnf.Generation.Timeout <= 0 {
		cnf.Generation.Timeout = 5 * time.Minute
	}
	if cnf.Generation.MaxConcurrent <= 0 {
		cnf.Generation.MaxConcurrent = 8
	}
	if cnf.Generation.DefaultStyle == "" {
		cnf.Generation.DefaultStyle = DEFAULT_STYLE
	}
	if cnf.Generation.ApiToken == "" {
		log.Println("Warning: Generation API token is empty. Generation requests will be rejected.")
	}

	if cnf.Jobs.TTL <= 0 {
		cnf.Jobs.TTL = time.Hour
	}

	if cnf.Payment.Price == "" {
		cnf.Payment.Price = DEFAULT_PRICE
	}
	if cnf.Payment.Network == "" {
		cnf.Payment.Network = DEFAULT_NETWORK
	}
	if cnf.Payment.AssetDecimals == 0 {
		cnf.Payment.AssetDecimals = 6
	}
	if cnf.Payment.MaxTimeoutSeconds == 0 {
		cnf.Payment.MaxTimeoutSeconds = 60
	}
	if cnf.Payment.Description == "" {
		cnf.Payment.Description = "Stylize a photo"
	}
	if cnf.Payment.Enabled && (cnf.Payment.FacilitatorUrl == "" || cnf.Payment.PayTo == "") {
		return errors.New("payment facilitator url and pay_to address are required when payments are enabled")
	}

	if cnf.Share.FetchTimeout <= 0 {
		cnf.Share.FetchTimeout = 15 * time.Second
	}
	if cnf.Share.CacheMaxAge <= 0 {
		cnf.Share.CacheMaxAge = 86400
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}
	if cnf.Queue.MaxRetry <= 0 {
		cnf.Queue.MaxRetry = 5
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
