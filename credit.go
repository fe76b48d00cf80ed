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
	"time"

	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/model"
)

const (
	ReasonDailyClaim = "daily_claim"
	dailyCreditDelta = 1
	recentEventLimit = 20
)

// CreditSummary is a user's balance with their latest credit events.
type CreditSummary struct {
	UserID  string              `json:"user_id"`
	Balance int64               `json:"balance"`
	Events  []model.CreditEvent `json:"events"`
}

// startOfDay returns local midnight of the day containing t.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// ClaimDailyCredit awards one credit to the user once per calendar day, the day
// starting at the server's local midnight.
func (a *Artify) ClaimDailyCredit(ctx context.Context, externalID string) (*model.CreditGrant, error) {
	ctx, span := tracer.Start(ctx, "ClaimDailyCredit")
	defer span.End()

	user, err := a.datasource.GetUserByExternalID(ctx, strings.TrimSpace(externalID))
	if err != nil {
		return nil, err
	}

	now := a.now()
	grant, err := a.datasource.GrantDailyCredit(ctx, model.CreditEvent{
		UserID:    user.ID,
		Delta:     dailyCreditDelta,
		Reason:    ReasonDailyClaim,
		CreatedAt: now,
	}, startOfDay(now))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if grant.Awarded {
		logrus.WithFields(logrus.Fields{"user": user.ExternalID, "balance": grant.Balance}).Info("daily credit awarded")
		a.track(user.ExternalID, "credit.daily_claimed", posthog.NewProperties().Set("balance", grant.Balance))
	}
	return grant, nil
}

// GetCredits returns the user's balance and most recent credit events.
func (a *Artify) GetCredits(ctx context.Context, externalID string) (*CreditSummary, error) {
	user, err := a.datasource.GetUserByExternalID(ctx, strings.TrimSpace(externalID))
	if err != nil {
		return nil, err
	}

	balance, err := a.datasource.GetCreditBalance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	events, err := a.datasource.ListCreditEvents(ctx, user.ID, recentEventLimit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.CreditEvent{}
	}

	return &CreditSummary{UserID: user.ExternalID, Balance: balance.Balance, Events: events}, nil
}
