package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/internal/payment"
)

type facilitatorStub struct {
	verify   string
	settle   string
	verified atomic.Int32
	settled  atomic.Int32
}

func (f *facilitatorStub) server(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(payment.Version), body["x402Version"])
		assert.NotNil(t, body["paymentPayload"])

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			f.verified.Add(1)
			_, _ = w.Write([]byte(f.verify))
		case "/settle":
			f.settled.Add(1)
			_, _ = w.Write([]byte(f.settle))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func paymentConfig(facilitatorURL string) *config.Configuration {
	return &config.Configuration{
		Server: config.ServerConfig{PublicURL: "https://artify.example.com"},
		Payment: config.PaymentConfig{
			Enabled:           true,
			FacilitatorUrl:    facilitatorURL,
			Network:           "base-sepolia",
			PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
			AssetDecimals:     6,
			Price:             "0.01",
			Description:       "Stylize a photo",
			MaxTimeoutSeconds: 60,
		},
	}
}

func paymentHeader() string {
	return base64.StdEncoding.EncodeToString([]byte(`{"x402Version":1,"scheme":"exact","network":"base-sepolia","payload":{"signature":"0xabc"}}`))
}

func paidRouter(conf *config.Configuration, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/generations", PaymentMiddleware(conf, payment.NewFacilitator(conf.Payment.FacilitatorUrl)), func(c *gin.Context) {
		c.JSON(status, gin.H{"paid": c.GetBool(PaymentVerifiedKey), "payer": c.GetString(PaymentPayerKey)})
	})
	return router
}

func post(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generations", strings.NewReader(`{}`))
	if header != "" {
		req.Header.Set(payment.HeaderPayment, header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPaymentMiddleware_Challenge(t *testing.T) {
	stub := &facilitatorStub{}
	router := paidRouter(paymentConfig(stub.server(t).URL), http.StatusAccepted)

	resp := post(router, "")
	require.Equal(t, http.StatusPaymentRequired, resp.Code)

	var challenge payment.Challenge
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &challenge))
	assert.Equal(t, payment.Version, challenge.X402Version)
	require.Len(t, challenge.Accepts, 1)
	assert.Equal(t, "10000", challenge.Accepts[0].MaxAmountRequired)
	assert.Equal(t, "https://artify.example.com/generations", challenge.Accepts[0].Resource)
	assert.Equal(t, "base-sepolia", challenge.Accepts[0].Network)
	assert.Equal(t, int32(0), stub.verified.Load())

	resp = post(router, "not-base64!")
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
}

func TestPaymentMiddleware_SettlesSuccessfulRequests(t *testing.T) {
	stub := &facilitatorStub{
		verify: `{"isValid":true,"payer":"0xpayer"}`,
		settle: `{"success":true,"transaction":"0xtx","network":"base-sepolia","payer":"0xpayer"}`,
	}
	router := paidRouter(paymentConfig(stub.server(t).URL), http.StatusAccepted)

	resp := post(router, paymentHeader())
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"paid":true,"payer":"0xpayer"}`, resp.Body.String())

	settlement, err := base64.StdEncoding.DecodeString(resp.Header().Get(payment.HeaderPaymentResponse))
	require.NoError(t, err)
	assert.Contains(t, string(settlement), "0xtx")
	assert.Equal(t, int32(1), stub.settled.Load())
}

func TestPaymentMiddleware_DoesNotSettleFailedRequests(t *testing.T) {
	stub := &facilitatorStub{verify: `{"isValid":true,"payer":"0xpayer"}`, settle: `{"success":true}`}
	router := paidRouter(paymentConfig(stub.server(t).URL), http.StatusBadRequest)

	resp := post(router, paymentHeader())
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, resp.Header().Get(payment.HeaderPaymentResponse))
	assert.Equal(t, int32(0), stub.settled.Load())
}

func TestPaymentMiddleware_InvalidPayment(t *testing.T) {
	stub := &facilitatorStub{verify: `{"isValid":false,"invalidReason":"insufficient_funds"}`}
	router := paidRouter(paymentConfig(stub.server(t).URL), http.StatusAccepted)

	resp := post(router, paymentHeader())
	require.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Contains(t, resp.Body.String(), "insufficient_funds")
	assert.Equal(t, int32(0), stub.settled.Load())
}

func TestPaymentMiddleware_SettlementFailure(t *testing.T) {
	stub := &facilitatorStub{verify: `{"isValid":true}`, settle: `{"success":false,"errorReason":"nonce_used"}`}
	router := paidRouter(paymentConfig(stub.server(t).URL), http.StatusAccepted)

	resp := post(router, paymentHeader())
	require.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Contains(t, resp.Body.String(), "nonce_used")
	assert.NotContains(t, resp.Body.String(), "paid")
}

func TestPaymentMiddleware_FacilitatorDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resp := post(paidRouter(paymentConfig(server.URL), http.StatusAccepted), paymentHeader())
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestPaymentMiddleware_Disabled(t *testing.T) {
	conf := paymentConfig("http://unused.invalid")
	conf.Payment.Enabled = false

	resp := post(paidRouter(conf, http.StatusAccepted), "")
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"paid":false,"payer":""}`, resp.Body.String())
}

func TestResourceURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://api.artify.test/generations", nil)
	assert.Equal(t, "http://api.artify.test/generations", resourceURL("", req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://api.artify.test/generations", resourceURL("", req))
	assert.Equal(t, "https://artify.app/generations", resourceURL("https://artify.app/", req))
}

func TestSettlePayment_HandlerStopsOnFailure(t *testing.T) {
	stub := &facilitatorStub{verify: `{"isValid":true}`, settle: `{"success":false,"errorReason":"nonce_used"}`}
	conf := paymentConfig(stub.server(t).URL)

	var worked bool
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/generations", PaymentMiddleware(conf, payment.NewFacilitator(conf.Payment.FacilitatorUrl)), func(c *gin.Context) {
		if !SettlePayment(c) {
			return
		}
		worked = true
		c.JSON(http.StatusAccepted, gin.H{"paid": c.GetBool(PaymentSettledKey)})
	})

	resp := post(router, paymentHeader())
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Contains(t, resp.Body.String(), "nonce_used")
	assert.False(t, worked)
	assert.Equal(t, int32(1), stub.settled.Load())
}

func TestSettlePayment_SettlesOnce(t *testing.T) {
	stub := &facilitatorStub{
		verify: `{"isValid":true,"payer":"0xpayer"}`,
		settle: `{"success":true,"transaction":"0xtx","network":"base-sepolia","payer":"0xpayer"}`,
	}
	conf := paymentConfig(stub.server(t).URL)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/generations", PaymentMiddleware(conf, payment.NewFacilitator(conf.Payment.FacilitatorUrl)), func(c *gin.Context) {
		require.True(t, SettlePayment(c))
		require.True(t, SettlePayment(c))
		c.JSON(http.StatusAccepted, gin.H{"paid": c.GetBool(PaymentSettledKey)})
	})

	resp := post(router, paymentHeader())
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"paid":true}`, resp.Body.String())
	assert.NotEmpty(t, resp.Header().Get(payment.HeaderPaymentResponse))
	assert.Equal(t, int32(1), stub.settled.Load())
}

func TestSettlePayment_OutsideGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/generations", nil)
	assert.True(t, SettlePayment(c))
}
