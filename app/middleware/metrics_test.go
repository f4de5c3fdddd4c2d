package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsUsesRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/metrics-test/:bid_number", func(c fiber.Ctx) error {
		return c.SendString(c.Params("bid_number"))
	})
	app.Get("/metrics-test-fail", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "taken")
	})

	ok := httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test/:bid_number", "200")
	conflict := httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test-fail", "409")
	before, beforeConflict := testutil.ToFloat64(ok), testutil.ToFloat64(conflict)

	for _, bn := range []string{"BN-1", "BN-2", "BN-3"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics-test/"+bn, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics-test-fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	assert.Equal(t, before+3, testutil.ToFloat64(ok))
	assert.Equal(t, beforeConflict+1, testutil.ToFloat64(conflict))
	assert.Zero(t, testutil.ToFloat64(httpInFlight))
}
