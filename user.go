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

	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/model"
)

// UpsertUser creates the user for user.ExternalID or updates its profile.
// Empty profile fields never erase stored values.
func (a *Artify) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "UpsertUser")
	defer span.End()

	user.ExternalID = strings.TrimSpace(user.ExternalID)
	if user.ExternalID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "external_id is required", nil)
	}
	user.WalletAddress = strings.TrimSpace(user.WalletAddress)

	stored, err := a.datasource.UpsertUser(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if user.MiniAppAdded != nil && *user.MiniAppAdded {
		a.track(stored.ExternalID, "miniapp.added", nil)
	}
	return stored, nil
}

func (a *Artify) GetUser(ctx context.Context, externalID string) (*model.User, error) {
	return a.datasource.GetUserByExternalID(ctx, strings.TrimSpace(externalID))
}
