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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/api/middleware"
	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/internal/metrics"
	"github.com/blnkfinance/artify/internal/payment"
	"github.com/blnkfinance/artify/internal/share"
)

type Api struct {
	artify      *artify.Artify
	conf        *config.Configuration
	router      *gin.Engine
	composer    *share.Composer
	facilitator *payment.Facilitator
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/styles", a.GetStyles)

	router.POST("/generations", middleware.PaymentMiddleware(a.conf, a.facilitator), a.StartGeneration)
	router.GET("/generations/:id", a.GetGeneration)

	router.POST("/users", a.UpsertUser)
	router.GET("/users/:id", a.GetUser)

	router.POST("/credits/daily", a.ClaimDailyCredit)
	router.GET("/credits/:id", a.GetCredits)

	router.GET("/gallery", a.ListGallery)
	router.POST("/gallery", a.SaveGalleryImage)

	router.GET("/featured", a.GetFeaturedImage)
	if a.conf.Server.Secure {
		router.PUT("/featured", middleware.SecretKeyAuthMiddleware(a.conf.Server.SecretKey), a.SetFeaturedImage)
	} else {
		router.PUT("/featured", a.SetFeaturedImage)
	}

	router.GET("/share-image", a.ShareImage)
	return a.router
}

func NewAPI(a *artify.Artify) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf := a.Config()

	r := gin.Default()
	if conf.EnableTelemetry {
		r.Use(otelgin.Middleware(conf.ProjectName))
	}
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.RateLimitMiddleware(conf, "/generations/:id", "/metrics"))

	r.GET("/", func(c *gin.Context) {
		resp := gin.H{"status": "server running..."}
		stats, err := a.QueueStats()
		if err != nil {
			logrus.WithError(err).Warn("queue stats unavailable")
		} else if stats != nil {
			resp["webhook_queue"] = stats
		}
		c.JSON(http.StatusOK, resp)
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Api{
		artify:      a,
		conf:        conf,
		router:      r,
		composer:    share.NewComposer(conf.Share.FetchTimeout),
		facilitator: payment.NewFacilitator(conf.Payment.FacilitatorUrl),
	}
}

func respondWithError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": apierror.Message(err)})
}
