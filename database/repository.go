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
	"time"

	"github.com/blnkfinance/artify/model"
)

// IDataSource groups the persistence operations of the service.
type IDataSource interface {
	user    // Interface for user-related operations
	gallery // Interface for gallery-related operations
	credit  // Interface for credit ledger operations
}

type user interface {
	UpsertUser(ctx context.Context, user *model.User) (*model.User, error)         // Creates or updates a user keyed on external id
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) // Retrieves a user by external id
}

type gallery interface {
	UpsertGalleryImage(ctx context.Context, image *model.GalleryImage) (*model.GalleryImage, error) // Creates or updates an image keyed on source url
	ListGalleryImages(ctx context.Context, creatorID string, limit int) ([]model.GalleryImage, error) // Lists the most recent paid images
	GetFeaturedImage(ctx context.Context) (*model.GalleryImage, error)                               // Retrieves the featured image, nil when none
	SetFeaturedImage(ctx context.Context, imageID string) (*model.GalleryImage, error)               // Makes imageID the only featured image
}

type credit interface {
	GrantDailyCredit(ctx context.Context, event model.CreditEvent, since time.Time) (*model.CreditGrant, error) // Appends event unless one with the same reason exists since the given time
	GetCreditBalance(ctx context.Context, userID string) (*model.CreditBalance, error)                         // Retrieves the derived balance of a user
	ListCreditEvents(ctx context.Context, userID string, limit int) ([]model.CreditEvent, error)               // Lists a user's most recent credit events
}
