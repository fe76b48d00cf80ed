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

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/api/middleware"
	model2 "github.com/blnkfinance/artify/api/model"
)

func (a Api) GetStyles(c *gin.Context) {
	c.JSON(http.StatusOK, artify.Styles())
}

func (a Api) StartGeneration(c *gin.Context) {
	var newGeneration model2.CreateGeneration
	if err := c.ShouldBindJSON(&newGeneration); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newGeneration.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := artify.GenerationRequest{
		SourceImage: newGeneration.SourceImage,
		StyleID:     newGeneration.Style,
		UserID:      newGeneration.UserID,
	}
	// nothing is charged for a request the service would reject
	if err := a.artify.ValidateGeneration(req); err != nil {
		respondWithError(c, err)
		return
	}

	if !middleware.SettlePayment(c) {
		return
	}
	// free deployments count every generation as paid
	req.Paid = !a.conf.Payment.Enabled || c.GetBool(middleware.PaymentSettledKey)

	job, err := a.artify.StartGeneration(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model2.GenerationAccepted{
		RequestID: job.RequestID,
		Status:    "accepted",
		Style:     job.Style,
	})
}

func (a Api) GetGeneration(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	job, err := a.artify.GenerationStatus(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, job)
}
