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
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/model"
)

// GalleryLimit is the most images a gallery listing returns.
const GalleryLimit = 100

// ListGallery returns up to GalleryLimit of the most recent paid images, limited to
// creatorID when it is not empty.
func (a *Artify) ListGallery(ctx context.Context, creatorID string) ([]model.GalleryImage, error) {
	images, err := a.datasource.ListGalleryImages(ctx, strings.TrimSpace(creatorID), GalleryLimit)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []model.GalleryImage{}
	}
	return images, nil
}

// SaveGalleryImage upserts image by its source url. A stored paid flag is never reset
// and a featured image replaces the previous featured one.
func (a *Artify) SaveGalleryImage(ctx context.Context, image *model.GalleryImage) (*model.GalleryImage, error) {
	ctx, span := tracer.Start(ctx, "SaveGalleryImage")
	defer span.End()

	image.SourceURL = strings.TrimSpace(image.SourceURL)
	if err := validation.Validate(image.SourceURL, validation.Required, model.HTTPURL); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "source_url must be an http(s) url", nil)
	}
	if image.Style != "" {
		if style, ok := findStyle(image.Style); ok {
			image.Style = style.ID
		}
	}
	if image.CreatorID != nil {
		creator := strings.TrimSpace(*image.CreatorID)
		image.CreatorID = &creator
		if creator == "" {
			image.CreatorID = nil
		}
	}

	saved, err := a.datasource.UpsertGalleryImage(ctx, image)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return saved, nil
}

// FeaturedImage returns the featured image, or nil when none is featured.
func (a *Artify) FeaturedImage(ctx context.Context) (*model.GalleryImage, error) {
	return a.datasource.GetFeaturedImage(ctx)
}

// SetFeaturedImage makes imageID the only featured image.
func (a *Artify) SetFeaturedImage(ctx context.Context, imageID string) (*model.GalleryImage, error) {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "image_id is required", nil)
	}
	return a.datasource.SetFeaturedImage(ctx, imageID)
}
