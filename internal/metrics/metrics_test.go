package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/generations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(Handler()))

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/generations/:id", "200"))

	for _, id := range []string{"gen_1", "gen_2"} {
		resp := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/generations/"+id, nil)
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/generations/:id", "200"))
	assert.Equal(t, before+2, after)

	resp := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "artify_http_requests_total")
}

func TestGenerationMetrics(t *testing.T) {
	startedBefore := testutil.ToFloat64(generationsStarted.WithLabelValues("ghibli"))
	inFlightBefore := testutil.ToFloat64(generationsInFlight)
	failedBefore := testutil.ToFloat64(generationsFinished.WithLabelValues("failed"))

	GenerationStarted("ghibli")
	assert.Equal(t, startedBefore+1, testutil.ToFloat64(generationsStarted.WithLabelValues("ghibli")))
	assert.Equal(t, inFlightBefore+1, testutil.ToFloat64(generationsInFlight))

	GenerationFinished("failed", 3*time.Second)
	assert.Equal(t, inFlightBefore, testutil.ToFloat64(generationsInFlight))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(generationsFinished.WithLabelValues("failed")))
}
