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
package model

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/blnkfinance/artify/model"
)

var walletAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func sourceImage(value interface{}) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "data:") {
		if !strings.HasPrefix(s, "data:image/") {
			return errors.New("must be an image data uri")
		}
		return nil
	}
	return validation.Validate(strings.TrimSpace(s), model.HTTPURL)
}

func (g *CreateGeneration) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.SourceImage, validation.Required.Error("source image is required"), validation.By(sourceImage)),
		validation.Field(&g.Style, validation.Length(0, 64)),
		validation.Field(&g.UserID, validation.Length(0, 128)),
	)
}

func (u *UpsertUser) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.ExternalID, validation.Required, validation.Length(1, 128)),
		validation.Field(&u.Username, validation.Length(0, 64)),
		validation.Field(&u.DisplayName, validation.Length(0, 128)),
		validation.Field(&u.AvatarURL, model.HTTPURL),
		validation.Field(&u.WalletAddress, validation.Match(walletAddress).Error("must be a 0x prefixed 20 byte hex address")),
	)
}

func (c *ClaimDailyCredit) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Required),
	)
}

func (g *SaveGalleryImage) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.SourceURL, validation.Required, model.HTTPURL),
		validation.Field(&g.Style, validation.Length(0, 64)),
	)
}

func (f *SetFeaturedImage) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.ImageID, validation.Required),
	)
}
