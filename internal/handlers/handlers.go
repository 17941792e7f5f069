package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"insightstox/internal/middleware"
	"insightstox/internal/models"
	"insightstox/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Poster interface {
	PostTransaction(ctx context.Context, req portfolio.TransactionRequest) (*portfolio.Receipt, error)
}

type Summaries interface {
	BuildDisplaySummary(ctx context.Context, email string) ([]portfolio.SummaryRow, error)
	Dashboard(ctx context.Context, email string) ([]portfolio.DashboardRow, error)
	Fundamentals(ctx context.Context, email string) ([]portfolio.FundamentalsRow, error)
}

type Store interface {
	ListHoldingsWithNames(ctx context.Context, email string) ([]models.HoldingView, error)
	ListTransactions(ctx context.Context, email string) ([]models.TransactionView, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	poster    Poster
	summaries Summaries
	store     Store
	log       *logrus.Logger
	now       func() time.Time
}

func NewHandler(p Poster, s Summaries, st Store, log *logrus.Logger) *Handler {
	return &Handler{poster: p, summaries: s, store: st, log: log, now: time.Now}
}

// Routes mounts the API. Everything under /api requires auth.
func (h *Handler) Routes(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api", auth)
	api.POST("/transactions", h.PostTransaction)
	api.GET("/portfolio/summary", h.GetSummary)
	api.GET("/portfolio/fundamentals", h.GetFundamentals)
	api.GET("/portfolio/holdings", h.GetHoldings)
	api.GET("/portfolio/transactions", h.GetTransactions)
	api.GET("/dashboard/stocks", h.GetDashboard)
}

type TransactionBody struct {
	Symbol   string      `json:"symbol" binding:"required"`
	Quantity json.Number `json:"quantity" binding:"required"`
	Type     string      `json:"type" binding:"required"`
	Date     string      `json:"date"`
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var body TransactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Warnf("invalid transaction body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	req, err := portfolio.ParseTransaction(middleware.Email(c), body.Symbol, body.Quantity.String(), body.Type, body.Date, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}

	rec, err := h.poster.PostTransaction(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "insert": rec.Entry, "update": rec.Holding})
}

func (h *Handler) GetSummary(c *gin.Context) {
	rows, err := h.summaries.BuildDisplaySummary(c.Request.Context(), middleware.Email(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "summary": []portfolio.SummaryRow{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": rows})
}

func (h *Handler) GetDashboard(c *gin.Context) {
	rows, err := h.summaries.Dashboard(c.Request.Context(), middleware.Email(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

func (h *Handler) GetFundamentals(c *gin.Context) {
	rows, err := h.summaries.Fundamentals(c.Request.Context(), middleware.Email(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No holdings found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rows), "data": rows})
}

func (h *Handler) GetHoldings(c *gin.Context) {
	rows, err := h.store.ListHoldingsWithNames(c.Request.Context(), middleware.Email(c))
	if err != nil {
		h.log.Errorf("list holdings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	rows, err := h.store.ListTransactions(c.Request.Context(), middleware.Email(c))
	if err != nil {
		h.log.Errorf("list transactions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Errorf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps a core error onto a status code. Internal details stay in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := portfolio.Kind(err)
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch kind {
	case portfolio.KindInvalidInput, portfolio.KindInsufficientHoldings:
		status, msg = http.StatusBadRequest, err.Error()
	case portfolio.KindQuoteUnavailable:
		status, msg = http.StatusBadGateway, "Quote unavailable, try again later"
	case portfolio.KindRateUnavailable:
		status, msg = http.StatusServiceUnavailable, "Exchange rate unavailable, try again later"
	case portfolio.KindPersistenceFailure:
		msg = "Failed to save, try again later"
	}
	if status >= 500 {
		h.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"success": false, "message": msg, "kind": string(kind)})
}
