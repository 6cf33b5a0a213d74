package server

import (
	"net/http"
	"time"

	billingcycledomain "github.com/droidtel/bss/internal/billingcycle/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type startBillingCycleRequest struct {
	CustomerID  string    `json:"customer_id"`
	CycleStart  time.Time `json:"cycle_start" binding:"required"`
	CycleEnd    time.Time `json:"cycle_end" binding:"required"`
	BillingDate time.Time `json:"billing_date" binding:"required"`
	Type        string    `json:"type"`
}

func (s *Server) StartBillingCycle(c *gin.Context) {
	var req startBillingCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var customerID snowflake.ID
	if req.CustomerID != "" {
		parsed, err := snowflake.ParseString(req.CustomerID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		customerID = parsed
	}

	cycle, err := s.cyclesvc.Start(c.Request.Context(), billingcycledomain.StartRequest{
		CustomerID:  customerID,
		CycleStart:  req.CycleStart,
		CycleEnd:    req.CycleEnd,
		BillingDate: req.BillingDate,
		Type:        billingcycledomain.CycleType(req.Type),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cycle)
}

func (s *Server) ProcessBillingCycle(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, billingcycledomain.ErrCycleNotFound)
		return
	}

	cycle, err := s.cyclesvc.Process(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cycle)
}

func (s *Server) GetBillingCycle(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, billingcycledomain.ErrCycleNotFound)
		return
	}

	cycle, err := s.cyclesvc.FindByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cycle)
}
