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
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/internal/metrics"
	"github.com/blnkfinance/artify/internal/share"
)

// ShareImage renders the 1200x800 share card for gen, split with orig when given.
func (a Api) ShareImage(c *gin.Context) {
	generated := c.Query("gen")
	original := c.Query("orig")
	label := c.Query("label")

	body, err := a.composer.Compose(c.Request.Context(), generated, original, label)
	if err != nil {
		var fetchErr *share.FetchError
		switch {
		case errors.Is(err, share.ErrMissingGenerated):
			c.JSON(http.StatusBadRequest, gin.H{"error": "gen is required"})
		case errors.As(err, &fetchErr):
			logrus.WithError(err).Warn("share image source unavailable")
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load image " + fetchErr.URL})
		default:
			logrus.WithError(err).Error("failed to render share image")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render share image"})
		}
		return
	}

	layout := "single"
	if original != "" {
		layout = "split"
	}
	metrics.ShareImageRendered(layout)

	maxAge := a.conf.Share.CacheMaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	c.Data(http.StatusOK, "image/jpeg", body)
}
