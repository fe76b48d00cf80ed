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

// Package replicate talks to a Replicate compatible prediction API.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blnkfinance/artify/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

var (
	ErrMissingToken = errors.New("generation api token is not configured")
	errNotFinished  = errors.New("prediction still running")
)

// Input is the image to image request sent for one generation.
type Input struct {
	Image          string  `json:"image"`
	Prompt         string  `json:"prompt"`
	PromptStrength float64 `json:"prompt_strength,omitempty"`
	GuidanceScale  float64 `json:"guidance_scale,omitempty"`
	InferenceSteps int     `json:"num_inference_steps,omitempty"`
}

// StatusError is returned when the prediction api answers with an error status.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func statusError(resp *resty.Response, err error) error {
	if resp != nil && resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Err: err}
	}
	return err
}

type Prediction struct {
	ID     string
	Status string
	Logs   string
	Error  string
	Output string
}

func (p *Prediction) Finished() bool {
	return p.Status == StatusSucceeded || p.Status == StatusFailed || p.Status == StatusCanceled
}

type Client struct {
	client       *resty.Client
	modelVersion string
	pollInterval time.Duration
	log          *logrus.Entry
}

func NewClient(cfg config.GenerationConfig) (*Client, error) {
	if strings.TrimSpace(cfg.ApiToken) == "" {
		return nil, ErrMissingToken
	}

	c := &Client{
		modelVersion: cfg.ModelVersion,
		pollInterval: cfg.PollInterval,
		log:          logrus.WithField("module", "replicate"),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}

	c.client = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseUrl, "/")).
		SetAuthToken(cfg.ApiToken).
		SetLogger(logrus.StandardLogger()).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		AddRetryCondition(onRetryCondition).
		OnAfterResponse(c.onStatusToError)

	return c, nil
}

// Server side errors and throttling may be retried.
func onRetryCondition(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
}

func (c *Client) onStatusToError(_ *resty.Client, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	detail := gjson.GetBytes(resp.Body(), "detail").String()
	c.log.WithField("status", resp.StatusCode()).
		WithField("url", resp.Request.URL).
		WithField("detail", detail).
		Debug("prediction api error")
	if detail != "" {
		return fmt.Errorf("prediction api: %s: %s", resp.Status(), detail)
	}
	return fmt.Errorf("prediction api: unexpected status %s", resp.Status())
}

func parsePrediction(body []byte) *Prediction {
	p := &Prediction{
		ID:     gjson.GetBytes(body, "id").String(),
		Status: gjson.GetBytes(body, "status").String(),
		Logs:   gjson.GetBytes(body, "logs").String(),
		Error:  gjson.GetBytes(body, "error").String(),
	}

	output := gjson.GetBytes(body, "output")
	if output.IsArray() {
		items := output.Array()
		if len(items) > 0 {
			p.Output = items[0].String()
		}
	} else if output.Type == gjson.String {
		p.Output = output.String()
	}
	return p
}

func (c *Client) CreatePrediction(ctx context.Context, input Input) (*Prediction, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"version": c.modelVersion,
			"input":   input,
		}).
		Post("/v1/predictions")
	if err != nil {
		return nil, statusError(resp, err)
	}

	p := parsePrediction(resp.Body())
	if p.ID == "" {
		return nil, errors.New("prediction api returned no prediction id")
	}
	return p, nil
}

func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/v1/predictions/{id}")
	if err != nil {
		return nil, statusError(resp, err)
	}
	return parsePrediction(resp.Body()), nil
}

// Run creates a prediction and polls it until it finishes or ctx is done.
// onLogs receives the accumulated log output after every poll.
func (c *Client) Run(ctx context.Context, input Input, onLogs func(logs string)) (string, error) {
	prediction, err := c.CreatePrediction(ctx, input)
	if err != nil {
		return "", err
	}
	log := c.log.WithField("prediction", prediction.ID)
	log.Debug("prediction created")

	var final *Prediction
	poll := func() error {
		p, err := c.GetPrediction(ctx, prediction.ID)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			// transient polling failures are retried until ctx expires
			log.WithError(err).Warn("polling prediction failed")
			return err
		}
		if onLogs != nil && p.Logs != "" {
			onLogs(p.Logs)
		}
		if !p.Finished() {
			return errNotFinished
		}
		final = p
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)
	if err := backoff.Retry(poll, b); err != nil {
		return "", err
	}

	switch final.Status {
	case StatusSucceeded:
		if final.Output == "" {
			return "", errors.New("prediction succeeded without output")
		}
		return final.Output, nil
	case StatusCanceled:
		return "", errors.New("prediction was canceled")
	default:
		if final.Error != "" {
			return "", fmt.Errorf("prediction failed: %s", final.Error)
		}
		return "", errors.New("prediction failed")
	}
}
