package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/erp/retail/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operatorEngine(captured *shared.Context) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(OperatorContext(OperatorConfig{Params: param.Defaults()}))
	engine.GET("/who", func(c *gin.Context) {
		sc, ok := GetOperatorContext(c)
		if ok {
			*captured = sc
		}
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestOperatorContext(t *testing.T) {
	branch := uuid.New()
	station := uuid.New()

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{name: "missing branch", headers: nil, status: http.StatusBadRequest},
		{name: "nil branch", headers: map[string]string{BranchHeaderKey: uuid.Nil.String()}, status: http.StatusBadRequest},
		{name: "malformed station", headers: map[string]string{BranchHeaderKey: branch.String(), StationHeaderKey: "x"}, status: http.StatusBadRequest},
		{name: "branch only", headers: map[string]string{BranchHeaderKey: branch.String()}, status: http.StatusNoContent},
		{
			name:    "full operator",
			headers: map[string]string{BranchHeaderKey: branch.String(), StationHeaderKey: station.String(), UserHeaderKey: uuid.NewString()},
			status:  http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sc shared.Context
			w := testutil.PerformRequest(t, operatorEngine(&sc), http.MethodGet, "/who", nil, tt.headers)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusNoContent {
				testutil.AssertErrorResponse(t, w, dto.ErrCodeMissingOperatorContext)
				return
			}
			assert.Equal(t, branch, sc.BranchID)
			assert.NotNil(t, sc.Params)
			assert.False(t, sc.Now().IsZero())
			if tt.headers[StationHeaderKey] != "" {
				assert.Equal(t, station, sc.StationID)
			}
		})
	}
}

func TestDecimalValidations(t *testing.T) {
	v := validator.New()
	RegisterValidations(v)

	type amount struct {
		Value string `json:"value" validate:"omitempty,decimal,nonnegative"`
	}
	for value, ok := range map[string]bool{
		"":      true,
		"0":     true,
		"12.50": true,
		"-1":    false,
		"ten":   false,
		"1e3":   true,
	} {
		err := v.Struct(amount{Value: value})
		if ok {
			assert.NoError(t, err, value)
			continue
		}
		require.Error(t, err, value)
		resp := FormatValidationErrors(err, "req-1")
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "value", resp.Error.Details[0].Field)
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(BodyLimit(8))
	engine.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := testutil.PerformRequest(t, engine, http.MethodPost, "/echo", map[string]string{"k": "a long value"}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeRequestTooLarge)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
