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
package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/internal/payment"
)

const (
	// PaymentVerifiedKey is set on the gin context once the facilitator accepted the payment.
	PaymentVerifiedKey = "artify.payment.verified"
	PaymentPayerKey    = "artify.payment.payer"
	// PaymentSettledKey is set once the facilitator settled the payment on chain.
	PaymentSettledKey = "artify.payment.settled"

	paymentSessionKey = "artify.payment.session"
)

// paymentSession carries a verified payment until it is settled.
type paymentSession struct {
	facilitator  *payment.Facilitator
	payload      []byte
	requirements payment.Requirements
	done         bool
	settled      bool
}

// bufferedWriter holds the handler's response until the payment is settled.
type bufferedWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.body.Len() > 0
}

func (w *bufferedWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	if _, err := w.ResponseWriter.Write(w.body.Bytes()); err != nil {
		logrus.WithError(err).Warn("failed to write buffered response")
	}
}

// resourceURL is the absolute url a payment is bound to.
func resourceURL(publicURL string, r *http.Request) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/") + r.URL.Path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func paymentRequired(c *gin.Context, reason string, requirements payment.Requirements) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, payment.Challenge{
		X402Version: payment.Version,
		Error:       reason,
		Accepts:     []payment.Requirements{requirements},
	})
}

// SettlePayment settles the payment verified for this request. Handlers call it once
// their input is valid and before doing paid work. It returns false after answering
// with 402 when settlement fails. Requests outside the gate always settle.
func SettlePayment(c *gin.Context) bool {
	value, exists := c.Get(paymentSessionKey)
	if !exists {
		return true
	}
	session := value.(*paymentSession)
	if session.done {
		return session.settled
	}
	session.done = true

	settlement, err := session.facilitator.Settle(c.Request.Context(), session.payload, session.requirements)
	if err != nil || !settlement.Success {
		reason := "payment settlement failed"
		if err != nil {
			logrus.WithError(err).Error("payment settlement failed")
		} else if settlement.ErrorReason != "" {
			reason = settlement.ErrorReason
		}
		paymentRequired(c, reason, session.requirements)
		return false
	}

	logrus.WithFields(logrus.Fields{"payer": settlement.Payer, "transaction": settlement.Transaction}).Info("payment settled")
	c.Header(payment.HeaderPaymentResponse, settlement.Header())
	c.Set(PaymentSettledKey, true)
	session.settled = true
	return true
}

// PaymentMiddleware requires an x402 payment for the routes it guards. The payment
// is verified before the handler runs. Handlers settle it with SettlePayment; if a
// handler succeeds without doing so, the payment is settled before its response is sent.
func PaymentMiddleware(conf *config.Configuration, facilitator *payment.Facilitator) gin.HandlerFunc {
	if !conf.Payment.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		requirements, err := payment.NewRequirements(conf.Payment, resourceURL(conf.Server.PublicURL, c.Request))
		if err != nil {
			logrus.WithError(err).Error("payment requirements are misconfigured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "payments are not configured correctly"})
			return
		}

		header := c.GetHeader(payment.HeaderPayment)
		if header == "" {
			paymentRequired(c, payment.HeaderPayment+" header is required", requirements)
			return
		}

		payload, err := payment.DecodeHeader(header)
		if err != nil {
			paymentRequired(c, err.Error(), requirements)
			return
		}

		verification, err := facilitator.Verify(c.Request.Context(), payload, requirements)
		if err != nil {
			logrus.WithError(err).Error("payment verification failed")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "payment could not be verified, try again"})
			return
		}
		if !verification.IsValid {
			reason := verification.InvalidReason
			if reason == "" {
				reason = "payment is invalid"
			}
			paymentRequired(c, reason, requirements)
			return
		}

		session := &paymentSession{facilitator: facilitator, payload: payload, requirements: requirements}
		c.Set(PaymentVerifiedKey, true)
		c.Set(PaymentPayerKey, verification.Payer)
		c.Set(paymentSessionKey, session)

		original := c.Writer
		buffered := &bufferedWriter{ResponseWriter: original, status: http.StatusOK}
		c.Writer = buffered
		c.Next()
		c.Writer = original

		if buffered.status >= http.StatusBadRequest || session.done {
			buffered.flush()
			return
		}

		// the buffered body is dropped when the late settlement fails
		if !SettlePayment(c) {
			return
		}
		buffered.flush()
	}
}
