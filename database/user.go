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

const userColumns = `user_id, external_id, username, display_name, avatar_url, wallet_address, mini_app_added, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*model.User, error) {
	user := &model.User{}
	var added bool
	err := row.Scan(&user.ID, &user.ExternalID, &user.Username, &user.DisplayName, &user.AvatarURL,
		&user.WalletAddress, &added, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.MiniAppAdded = &added
	return user, nil
}

// UpsertUser creates the user or updates the stored record. Empty fields on the
// incoming record never erase stored values.
func (d Datasource) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	added := sql.NullBool{}
	if user.MiniAppAdded != nil {
		added = sql.NullBool{Bool: *user.MiniAppAdded, Valid: true}
	}

	row := d.Conn.QueryRowContext(ctx, `
		INSERT INTO artify.users AS u (user_id, external_id, username, display_name, avatar_url, wallet_address, mini_app_added, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::boolean, FALSE), $8, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), u.username),
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), u.display_name),
			avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), u.avatar_url),
			wallet_address = COALESCE(NULLIF(EXCLUDED.wallet_address, ''), u.wallet_address),
			mini_app_added = COALESCE($7::boolean, u.mini_app_added),
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		model.GenerateUUIDWithSuffix("usr"), user.ExternalID, user.Username, user.DisplayName, user.AvatarURL,
		user.WalletAddress, added, now)

	stored, err := scanUser(row)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save user", err)
	}
	return stored, nil
}

func (d Datasource) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM artify.users WHERE external_id = $1`, externalID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}
	return user, nil
}
