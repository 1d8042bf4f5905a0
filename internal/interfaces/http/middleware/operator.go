package middleware

import (
	"net/http"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/infrastructure/logger"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Headers naming the operator of a request
const (
	BranchHeaderKey  = "X-Branch-ID"
	UserHeaderKey    = "X-User-ID"
	StationHeaderKey = "X-Station-ID"

	operatorContextKey = "operator_context"
)

// OperatorConfig holds what every operator context shares
type OperatorConfig struct {
	Params shared.Parameters
	// Clock defaults to time.Now
	Clock func() time.Time
}

// OperatorContext builds the shared.Context of a request from its headers.
// X-Branch-ID is required. X-User-ID and X-Station-ID are optional but must
// be valid UUIDs when present.
func OperatorContext(cfg OperatorConfig) gin.HandlerFunc {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return func(c *gin.Context) {
		branchID, ok := parseHeader(c, BranchHeaderKey, true)
		if !ok {
			return
		}
		userID, ok := parseHeader(c, UserHeaderKey, false)
		if !ok {
			return
		}
		stationID, ok := parseHeader(c, StationHeaderKey, false)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		zl := logger.GetGinLogger(c)
		ctx, zl = logger.WithBranchID(ctx, zl, branchID)
		if userID != uuid.Nil {
			ctx, zl = logger.WithUserID(ctx, zl, userID)
		}
		if stationID != uuid.Nil {
			ctx, zl = logger.WithStationID(ctx, zl, stationID)
		}
		c.Request = c.Request.WithContext(ctx)
		logger.SetGinLogger(c, zl)

		c.Set(operatorContextKey, shared.Context{
			BranchID:  branchID,
			UserID:    userID,
			StationID: stationID,
			Params:    cfg.Params,
			Clock:     clock,
		})
		c.Next()
	}
}

// GetOperatorContext returns the context stored by OperatorContext
func GetOperatorContext(c *gin.Context) (shared.Context, bool) {
	v, ok := c.Get(operatorContextKey)
	if !ok {
		return shared.Context{}, false
	}
	sc, ok := v.(shared.Context)
	return sc, ok
}

func parseHeader(c *gin.Context, key string, required bool) (uuid.UUID, bool) {
	raw := c.GetHeader(key)
	if raw == "" {
		if required {
			abortMissingOperator(c, key+" header is required")
			return uuid.Nil, false
		}
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		abortMissingOperator(c, key+" header must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func abortMissingOperator(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeMissingOperatorContext,
		message,
		logger.GetRequestID(c.Request.Context()),
	))
}
