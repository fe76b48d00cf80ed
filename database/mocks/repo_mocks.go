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
package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/artify/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// User methods

func (m *MockDataSource) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// Gallery methods

func (m *MockDataSource) UpsertGalleryImage(ctx context.Context, image *model.GalleryImage) (*model.GalleryImage, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GalleryImage), args.Error(1)
}

func (m *MockDataSource) ListGalleryImages(ctx context.Context, creatorID string, limit int) ([]model.GalleryImage, error) {
	args := m.Called(ctx, creatorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GalleryImage), args.Error(1)
}

func (m *MockDataSource) GetFeaturedImage(ctx context.Context) (*model.GalleryImage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GalleryImage), args.Error(1)
}

func (m *MockDataSource) SetFeaturedImage(ctx context.Context, imageID string) (*model.GalleryImage, error) {
	args := m.Called(ctx, imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GalleryImage), args.Error(1)
}

// Credit methods

func (m *MockDataSource) GrantDailyCredit(ctx context.Context, event model.CreditEvent, since time.Time) (*model.CreditGrant, error) {
	args := m.Called(ctx, event, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditGrant), args.Error(1)
}

func (m *MockDataSource) GetCreditBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditBalance), args.Error(1)
}

func (m *MockDataSource) ListCreditEvents(ctx context.Context, userID string, limit int) ([]model.CreditEvent, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CreditEvent), args.Error(1)
}
