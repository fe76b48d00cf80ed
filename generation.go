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
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/internal/metrics"
	"github.com/blnkfinance/artify/internal/notification"
	"github.com/blnkfinance/artify/internal/progress"
	"github.com/blnkfinance/artify/internal/replicate"
	"github.com/blnkfinance/artify/model"
)

var tracer = otel.Tracer("artify.generations")

const (
	// maxDataURILength caps inline uploads at roughly 10MB of image data.
	maxDataURILength = 14 << 20

	defaultGenerationTimeout = 5 * time.Minute

	EventGenerationCompleted = "generation.completed"
	EventGenerationFailed    = "generation.failed"
)

// GenerationRequest is a request to stylize SourceImage with StyleID.
// Paid marks the resulting gallery image as paid for.
type GenerationRequest struct {
	SourceImage string
	StyleID     string
	UserID      string
	Paid        bool
}

// validateSourceImage accepts http(s) URLs and base64 image data URIs.
func validateSourceImage(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "source image is required", nil)
	}

	if strings.HasPrefix(source, "data:") {
		if len(source) > maxDataURILength {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "source image is too large", nil)
		}
		header, data, found := strings.Cut(source, ",")
		if !found || data == "" || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "source image must be a base64 encoded image data uri", nil)
		}
		return nil
	}

	if err := validation.Validate(source, model.HTTPURL); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "source image must be an http(s) url or an image data uri", nil)
	}
	return nil
}

// ValidateGeneration reports the errors StartGeneration would reject req with
// before any job exists: a bad source image or a missing generation credential.
func (a *Artify) ValidateGeneration(req GenerationRequest) error {
	if err := validateSourceImage(req.SourceImage); err != nil {
		return err
	}
	if a.generator == nil {
		return apierror.NewAPIError(apierror.ErrConfiguration, "image generation is not configured", errors.New("generation api token is not set"))
	}
	return nil
}

// StartGeneration validates req, registers a pending job and runs the generation in
// the background. The returned job is pending at progress 0.
func (a *Artify) StartGeneration(ctx context.Context, req GenerationRequest) (*model.GenerationJob, error) {
	ctx, span := tracer.Start(ctx, "StartGeneration")
	defer span.End()

	if err := a.ValidateGeneration(req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	style := ResolveStyle(req.StyleID, a.config.Generation.DefaultStyle)
	job := &model.GenerationJob{
		RequestID: model.GenerateUUIDWithSuffix("gen"),
		Style:     style.ID,
		SourceURL: strings.TrimSpace(req.SourceImage),
		UserID:    strings.TrimSpace(req.UserID),
		Paid:      req.Paid,
	}
	if err := a.tracker.Create(ctx, job); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to register generation job", err)
	}
	span.SetAttributes(attribute.String("request_id", job.RequestID), attribute.String("style", style.ID))

	metrics.GenerationStarted(style.ID)
	background := *job
	a.pool.Submit(func() {
		a.runGeneration(background, style)
	})

	return job, nil
}

// GenerationStatus returns the tracked state of requestID. Unknown ids read as
// pending at progress 0.
func (a *Artify) GenerationStatus(ctx context.Context, requestID string) (*model.GenerationJob, error) {
	job, err := a.tracker.Get(ctx, requestID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to read generation job", err)
	}
	return job, nil
}

func (a *Artify) runGeneration(job model.GenerationJob, style model.Style) {
	started := a.now()
	timeout := a.config.Generation.Timeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "RunGeneration", trace.WithAttributes(
		attribute.String("request_id", job.RequestID),
		attribute.String("style", style.ID),
	))
	defer span.End()

	// tracker and database writes must outlive the generation deadline
	storeCtx := context.WithoutCancel(ctx)
	logger := logrus.WithFields(logrus.Fields{"request_id": job.RequestID, "style": style.ID, "user": job.UserID})

	// set once the outcome is recorded so a later panic does not record it twice
	finished := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("generation panicked: %v", r)
		if finished {
			logger.WithError(err).Error("generation panicked after completing")
			notification.NotifyError(err)
			return
		}
		a.failGeneration(storeCtx, span, logger, job, started, err)
	}()

	input := replicate.Input{
		Image:          job.SourceURL,
		Prompt:         style.Prompt,
		PromptStrength: style.PromptStrength,
		GuidanceScale:  style.GuidanceScale,
		InferenceSteps: style.InferenceSteps,
	}
	resultURL, err := a.generator.Run(ctx, input, func(logs string) {
		value, ok := progress.Parse(logs)
		if !ok {
			return
		}
		if err := a.tracker.UpdateProgress(storeCtx, job.RequestID, value); err != nil {
			logger.WithError(err).Warn("failed to record generation progress")
		}
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("generation timed out after %s: %w", timeout, err)
		}
		finished = true
		a.failGeneration(storeCtx, span, logger, job, started, err)
		return
	}

	if a.archiver != nil {
		archived, err := a.archiver.Archive(storeCtx, job.RequestID, resultURL)
		if err != nil {
			logger.WithError(err).Warn("archiving result failed, keeping provider url")
		} else {
			resultURL = archived
		}
	}

	if err := a.tracker.Complete(storeCtx, job.RequestID, resultURL); err != nil {
		logger.WithError(err).Error("failed to record generation result")
	}
	finished = true
	metrics.GenerationFinished(string(model.JobSucceeded), a.now().Sub(started))
	span.SetStatus(codes.Ok, "")
	logger.WithField("result_url", resultURL).Info("generation succeeded")

	image := a.saveToGallery(storeCtx, logger, job, resultURL)

	payload := map[string]interface{}{
		"request_id": job.RequestID,
		"style":      style.ID,
		"user_id":    job.UserID,
		"result_url": resultURL,
	}
	if image != nil {
		payload["image_id"] = image.ID
	}
	if err := a.SendWebhook(NewWebhook{Event: EventGenerationCompleted, Payload: payload}); err != nil {
		logger.WithError(err).Warn("failed to queue generation webhook")
	}
	a.track(job.UserID, EventGenerationCompleted, posthog.NewProperties().
		Set("style", style.ID).
		Set("paid", job.Paid).
		Set("duration_ms", a.now().Sub(started).Milliseconds()))
}

func (a *Artify) failGeneration(ctx context.Context, span trace.Span, logger *logrus.Entry, job model.GenerationJob, started time.Time, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	if err := a.tracker.Fail(ctx, job.RequestID, cause.Error()); err != nil {
		logger.WithError(err).Error("failed to record generation failure")
	}
	metrics.GenerationFinished(string(model.JobFailed), a.now().Sub(started))
	notification.NotifyError(fmt.Errorf("generation %s failed: %w", job.RequestID, cause))

	payload := map[string]interface{}{
		"request_id": job.RequestID,
		"style":      job.Style,
		"user_id":    job.UserID,
		"error":      cause.Error(),
	}
	if err := a.SendWebhook(NewWebhook{Event: EventGenerationFailed, Payload: payload}); err != nil {
		logger.WithError(err).Warn("failed to queue generation webhook")
	}
	a.track(job.UserID, EventGenerationFailed, posthog.NewProperties().Set("style", job.Style))
}

// saveToGallery records the result as the featured gallery image, retrying
// transient database failures. It returns nil when the image could not be stored.
func (a *Artify) saveToGallery(ctx context.Context, logger *logrus.Entry, job model.GenerationJob, resultURL string) *model.GalleryImage {
	if a.datasource == nil {
		return nil
	}

	image := &model.GalleryImage{
		SourceURL: resultURL,
		Style:     job.Style,
		Paid:      job.Paid,
		Featured:  true,
	}
	if job.UserID != "" {
		creator := job.UserID
		image.CreatorID = &creator
	}

	var saved *model.GalleryImage
	operation := func() error {
		var err error
		saved, err = a.datasource.UpsertGalleryImage(ctx, image)
		if apierror.Is(err, apierror.ErrInvalidInput) || apierror.Is(err, apierror.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx), func(err error, wait time.Duration) {
		logger.WithError(err).WithField("retry_in", wait).Warn("saving gallery image failed, retrying")
	})
	if err != nil {
		logger.WithError(err).Error("failed to save generated image to gallery")
		return nil
	}
	return saved
}
