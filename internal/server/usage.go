package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/droidtel/bss/internal/usage/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ingestUsageRequest struct {
	SubscriptionID  string          `json:"subscription_id" binding:"required"`
	UsageType       string          `json:"usage_type" binding:"required"`
	DestinationType *string         `json:"destination_type"`
	RatePeriod      *string         `json:"rate_period"`
	UsageUnit       string          `json:"usage_unit" binding:"required"`
	UsageAmount     decimal.Decimal `json:"usage_amount"`
	RecordedAt      time.Time       `json:"recorded_at" binding:"required"`
	Source          string          `json:"source"`
	SourceFile      string          `json:"source_file"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Metadata        map[string]any  `json:"metadata"`
}

func (s *Server) IngestUsage(c *gin.Context) {
	var req ingestUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	subscriptionID, err := snowflake.ParseString(req.SubscriptionID)
	if err != nil {
		AbortWithError(c, usagedomain.ErrInvalidSubscription)
		return
	}

	ingest := usagedomain.IngestRequest{
		SubscriptionID: subscriptionID,
		UsageType:      usagedomain.UsageType(req.UsageType),
		UsageUnit:      usagedomain.UsageUnit(req.UsageUnit),
		UsageAmount:    req.UsageAmount,
		RecordedAt:     req.RecordedAt,
		Source:         req.Source,
		SourceFile:     req.SourceFile,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}
	if req.DestinationType != nil {
		destinationType := usagedomain.DestinationType(*req.DestinationType)
		ingest.DestinationType = &destinationType
	}
	if req.RatePeriod != nil {
		ratePeriod := usagedomain.RatePeriod(*req.RatePeriod)
		ingest.RatePeriod = &ratePeriod
	}

	record, err := s.usagesvc.Ingest(c.Request.Context(), ingest)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
