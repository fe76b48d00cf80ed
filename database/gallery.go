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

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/model"
)

const (
	galleryColumns = `image_id, source_url, style, paid, featured, creator_id, created_at, updated_at`

	// featuredLockName serialises every writer of the featured flag.
	featuredLockName = "artify.gallery.featured"
)

func scanGalleryImage(row scanner) (*model.GalleryImage, error) {
	image := &model.GalleryImage{}
	var creator sql.NullString
	err := row.Scan(&image.ID, &image.SourceURL, &image.Style, &image.Paid, &image.Featured, &creator,
		&image.CreatedAt, &image.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if creator.Valid {
		image.CreatorID = &creator.String
	}
	return image, nil
}

func lockFeatured(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, featuredLockName)
	return err
}

func clearFeatured(ctx context.Context, tx *sql.Tx, keepImageID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE artify.gallery_images SET featured = FALSE, updated_at = $2
		WHERE featured AND image_id <> $1
	`, keepImageID, now)
	return err
}

// UpsertGalleryImage creates or updates the image stored for image.SourceURL.
// Paid never goes back to false and an empty creator keeps the stored one.
// When the image is featured, every other featured image is cleared in the same transaction.
func (d Datasource) UpsertGalleryImage(ctx context.Context, image *model.GalleryImage) (*model.GalleryImage, error) {
	now := time.Now().UTC()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if image.Featured {
		if err := lockFeatured(ctx, tx); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock featured image", err)
		}
		if err := clearFeatured(ctx, tx, "", now); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear featured image", err)
		}
	}

	var creator sql.NullString
	if image.CreatorID != nil && *image.CreatorID != "" {
		creator = sql.NullString{String: *image.CreatorID, Valid: true}
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO artify.gallery_images AS g (image_id, source_url, style, paid, featured, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (source_url) DO UPDATE SET
			style = COALESCE(NULLIF(EXCLUDED.style, ''), g.style),
			paid = g.paid OR EXCLUDED.paid,
			featured = EXCLUDED.featured,
			creator_id = COALESCE(EXCLUDED.creator_id, g.creator_id),
			updated_at = EXCLUDED.updated_at
		RETURNING `+galleryColumns,
		model.GenerateUUIDWithSuffix("img"), image.SourceURL, image.Style, image.Paid, image.Featured, creator, now)

	stored, err := scanGalleryImage(row)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save gallery image", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return stored, nil
}

// ListGalleryImages returns paid images, newest first, optionally filtered by creator.
func (d Datasource) ListGalleryImages(ctx context.Context, creatorID string, limit int) ([]model.GalleryImage, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+galleryColumns+`
		FROM artify.gallery_images
		WHERE paid AND ($1 = '' OR creator_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, creatorID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list gallery images", err)
	}
	defer rows.Close()

	images := []model.GalleryImage{}
	for rows.Next() {
		image, err := scanGalleryImage(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan gallery image", err)
		}
		images = append(images, *image)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list gallery images", err)
	}
	return images, nil
}

// GetFeaturedImage returns nil without an error when no image is featured.
func (d Datasource) GetFeaturedImage(ctx context.Context) (*model.GalleryImage, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+galleryColumns+`
		FROM artify.gallery_images
		WHERE featured
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	image, err := scanGalleryImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve featured image", err)
	}
	return image, nil
}

// SetFeaturedImage makes imageID the only featured image.
func (d Datasource) SetFeaturedImage(ctx context.Context, imageID string) (*model.GalleryImage, error) {
	now := time.Now().UTC()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockFeatured(ctx, tx); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock featured image", err)
	}
	if err := clearFeatured(ctx, tx, imageID, now); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear featured image", err)
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE artify.gallery_images SET featured = TRUE, updated_at = $2
		WHERE image_id = $1
		RETURNING `+galleryColumns, imageID, now)
	image, err := scanGalleryImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Gallery image not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to set featured image", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return image, nil
}
