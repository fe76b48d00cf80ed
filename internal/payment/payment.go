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

// Package payment speaks the x402 protocol to an external payment facilitator.
// Verification and settlement happen at the facilitator; this package only
// describes what must be paid and relays the client's payment proof.
package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/artify/config"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	Version     = 1
	SchemeExact = "exact"

	// HeaderPayment carries the client's base64 encoded payment payload.
	HeaderPayment = "X-PAYMENT"
	// HeaderPaymentResponse carries the base64 encoded settlement result.
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

// USDC contract addresses used when no asset is configured.
var defaultAssets = map[string]string{
	"base":         "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	"base-sepolia": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
}

var ErrInvalidHeader = errors.New("invalid payment header")

type Requirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Challenge is the body of a 402 response.
type Challenge struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error"`
	Accepts     []Requirements `json:"accepts"`
}

type VerifyResult struct {
	IsValid       bool
	InvalidReason string
	Payer         string
}

type SettleResult struct {
	Success     bool
	ErrorReason string
	Transaction string
	Network     string
	Payer       string
	raw         []byte
}

// Header encodes the settlement for the X-PAYMENT-RESPONSE header.
func (s *SettleResult) Header() string {
	return base64.StdEncoding.EncodeToString(s.raw)
}

// AtomicAmount converts a decimal price such as "0.01" or "$0.01" into the
// asset's smallest unit.
func AtomicAmount(price string, decimals int32) (string, error) {
	price = strings.TrimPrefix(strings.TrimSpace(price), "$")
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", price, err)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("price must be positive, got %s", price)
	}
	atomic := amount.Shift(decimals)
	if !atomic.Equal(atomic.Truncate(0)) {
		return "", fmt.Errorf("price %s has more than %d decimal places", price, decimals)
	}
	return atomic.StringFixed(0), nil
}

// NewRequirements describes the payment expected for resource.
func NewRequirements(cfg config.PaymentConfig, resource string) (Requirements, error) {
	amount, err := AtomicAmount(cfg.Price, cfg.AssetDecimals)
	if err != nil {
		return Requirements{}, err
	}

	asset := cfg.Asset
	if asset == "" {
		asset = defaultAssets[cfg.Network]
	}
	if asset == "" {
		return Requirements{}, fmt.Errorf("no payment asset configured for network %s", cfg.Network)
	}

	name, version := cfg.AssetName, cfg.AssetVersion
	if name == "" {
		name = "USD Coin"
		if cfg.Network == "base-sepolia" {
			name = "USDC"
		}
	}
	if version == "" {
		version = "2"
	}

	return Requirements{
		Scheme:            SchemeExact,
		Network:           cfg.Network,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       cfg.Description,
		MimeType:          "application/json",
		PayTo:             cfg.PayTo,
		MaxTimeoutSeconds: cfg.MaxTimeoutSeconds,
		Asset:             asset,
		Extra:             map[string]string{"name": name, "version": version},
	}, nil
}

// DecodeHeader decodes the base64 JSON payload sent in X-PAYMENT.
func DecodeHeader(header string) (json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return nil, ErrInvalidHeader
	}
	if !gjson.ValidBytes(raw) || !gjson.GetBytes(raw, "payload").Exists() {
		return nil, ErrInvalidHeader
	}
	return raw, nil
}

type Facilitator struct {
	client *resty.Client
}

func NewFacilitator(baseURL string) *Facilitator {
	return &Facilitator{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second).
			SetLogger(logrus.StandardLogger()),
	}
}

type facilitatorRequest struct {
	X402Version         int             `json:"x402Version"`
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements Requirements    `json:"paymentRequirements"`
}

func (f *Facilitator) post(ctx context.Context, path string, payload json.RawMessage, req Requirements) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(facilitatorRequest{X402Version: Version, PaymentPayload: payload, PaymentRequirements: req}).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("facilitator %s returned %s", path, resp.Status())
	}
	if !gjson.ValidBytes(resp.Body()) {
		return nil, fmt.Errorf("facilitator %s returned an invalid body", path)
	}
	return resp.Body(), nil
}

func (f *Facilitator) Verify(ctx context.Context, payload json.RawMessage, req Requirements) (*VerifyResult, error) {
	body, err := f.post(ctx, "/verify", payload, req)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		IsValid:       gjson.GetBytes(body, "isValid").Bool(),
		InvalidReason: gjson.GetBytes(body, "invalidReason").String(),
		Payer:         gjson.GetBytes(body, "payer").String(),
	}, nil
}

func (f *Facilitator) Settle(ctx context.Context, payload json.RawMessage, req Requirements) (*SettleResult, error) {
	body, err := f.post(ctx, "/settle", payload, req)
	if err != nil {
		return nil, err
	}
	return &SettleResult{
		Success:     gjson.GetBytes(body, "success").Bool(),
		ErrorReason: gjson.GetBytes(body, "errorReason").String(),
		Transaction: gjson.GetBytes(body, "transaction").String(),
		Network:     gjson.GetBytes(body, "network").String(),
		Payer:       gjson.GetBytes(body, "payer").String(),
		raw:         body,
	}, nil
}
