package router

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/retail/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestDomainGroup_RegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	group := NewDomainGroup("things", "/things").Use(mark("group")).
		GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }).
		POST("/:id/poke", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	NewRouter(engine, WithAPIVersion("v2"), WithMiddleware(mark("api"))).Register(group).Setup()

	assert.Equal(t, "things", group.Name())
	assert.Equal(t, "/things", group.Prefix())

	w := testutil.PerformRequest(t, engine, http.MethodGet, "/api/v2/things/42", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
	assert.Equal(t, []string{"api", "group"}, order)

	w = testutil.PerformRequest(t, engine, http.MethodPost, "/api/v2/things/42/poke", nil, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = testutil.PerformRequest(t, engine, http.MethodGet, "/api/v1/things/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := gin.New()
	NewRouter(healthy).Setup()
	w := testutil.PerformRequest(t, healthy, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", testutil.JSONResponse(t, w)["status"])

	down := gin.New()
	NewRouter(down,
		WithHealthCheck("database", func(context.Context) error { return errors.New("connection refused") }),
		WithHealthCheck("storage", func(context.Context) error { return nil }),
	).Setup()
	w = testutil.PerformRequest(t, down, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := testutil.JSONResponse(t, w)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, map[string]any{"database": "error", "storage": "ok"}, body["checks"])
}
