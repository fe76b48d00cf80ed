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

// GrantDailyCredit appends event and increments the user's balance in one transaction,
// unless an event with the same reason was already recorded at or after since.
// A per user advisory lock makes concurrent claims for the same user take turns.
func (d Datasource) GrantDailyCredit(ctx context.Context, event model.CreditEvent, since time.Time) (*model.CreditGrant, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "artify.credit:"+event.UserID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock credit balance", err)
	}

	var claimed bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM artify.credit_events
			WHERE user_id = $1 AND reason = $2 AND created_at >= $3
		)
	`, event.UserID, event.Reason, since).Scan(&claimed)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check credit events", err)
	}

	if claimed {
		var balance int64
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE((SELECT balance FROM artify.credit_balances WHERE user_id = $1), 0)
		`, event.UserID).Scan(&balance)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve credit balance", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
		}
		return &model.CreditGrant{Awarded: false, Balance: balance}, nil
	}

	if event.ID == "" {
		event.ID = model.GenerateUUIDWithSuffix("cev")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artify.credit_events (event_id, user_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.UserID, event.Delta, event.Reason, event.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record credit event", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO artify.credit_balances AS b (user_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = b.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING balance
	`, event.UserID, event.Delta, event.CreatedAt).Scan(&balance)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update credit balance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return &model.CreditGrant{Awarded: true, Balance: balance}, nil
}

// GetCreditBalance returns a zero balance for users that never received credits.
func (d Datasource) GetCreditBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	balance := &model.CreditBalance{UserID: userID}
	var updatedAt sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT balance, updated_at FROM artify.credit_balances WHERE user_id = $1
	`, userID).Scan(&balance.Balance, &updatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve credit balance", err)
	}
	if updatedAt.Valid {
		balance.UpdatedAt = updatedAt.Time
	}
	return balance, nil
}

func (d Datasource) ListCreditEvents(ctx context.Context, userID string, limit int) ([]model.CreditEvent, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT event_id, user_id, delta, reason, created_at
		FROM artify.credit_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list credit events", err)
	}
	defer rows.Close()

	events := []model.CreditEvent{}
	for rows.Next() {
		var event model.CreditEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.Delta, &event.Reason, &event.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan credit event", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list credit events", err)
	}
	return events, nil
}
