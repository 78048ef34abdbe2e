package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"paperlens/internal/interpret"
	"paperlens/internal/models"
	"paperlens/internal/papers"
	"paperlens/internal/ratelimit"
)

// Interpreter runs one interpretation request against an event sink.
type Interpreter interface {
	Run(ctx context.Context, req interpret.Request, sink interpret.EventSink)
}

// Catalog serves day listings of papers.
type Catalog interface {
	FetchDaily(ctx context.Context, date string) ([]models.Paper, error)
}

// Handler wires HTTP routes to the catalog and the interpretation pipeline.
type Handler struct {
	interp       Interpreter
	catalog      Catalog
	validateURL  func(string) error
	general      *ratelimit.Limiter
	strict       *ratelimit.Limiter
	aiConfigured bool
}

// NewHandler constructs a Handler instance. validateURL is the fetch
// gateway's pre-flight check, run before any stream is opened.
func NewHandler(interp Interpreter, catalog Catalog, validateURL func(string) error, general, strict *ratelimit.Limiter, aiConfigured bool) *Handler {
	return &Handler{
		interp:       interp,
		catalog:      catalog,
		validateURL:  validateURL,
		general:      general,
		strict:       strict,
		aiConfigured: aiConfigured,
	}
}

// RegisterRoutes attaches all HTTP routes to the router. Health routes carry
// no rate limit; the interpretation route uses the strict limiter instead of
// the general one.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.GET("/papers/health", h.papersHealth)
	api.GET("/papers", h.general.Middleware(), h.getPapers)
	api.GET("/ai-interpretation/health", h.aiHealth)
	api.POST("/ai-interpretation", h.strict.Middleware(), h.interpretPaper)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) papersHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "papers",
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": gin.H{
			"fetchPapers": "GET /api/papers?date=YYYY-MM-DD",
		},
	})
}

func (h *Handler) aiHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":              "ai-interpretation",
		"status":               "OK",
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
		"dashscope_configured": h.aiConfigured,
		"endpoints": gin.H{
			"interpret": "POST /api/ai-interpretation",
		},
	})
}

func (h *Handler) getPapers(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Date parameter is required",
			"example": "/api/papers?date=2024-01-15",
		})
		return
	}
	if !papers.IsValidDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Invalid date format. Please use YYYY-MM-DD format",
			"provided": date,
			"example":  "2024-01-15",
		})
		return
	}
	today := time.Now().Format("2006-01-02")
	if date > today {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Cannot fetch papers for future dates",
			"provided": date,
			"maxDate":  today,
		})
		return
	}

	list, err := h.catalog.FetchDaily(c.Request.Context(), date)
	if err != nil {
		var upstream *papers.UpstreamError
		var unreachable *papers.UnreachableError
		switch {
		case errors.As(err, &upstream):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "External API error",
				"details": err.Error(),
			})
		case errors.As(err, &unreachable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Service temporarily unavailable",
				"details": "Unable to connect to HuggingFace API",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"date":    date,
		"count":   len(list),
		"papers":  list,
	})
}

type interpretationRequest struct {
	PDFURL     string `json:"pdf_url"`
	PaperID    string `json:"paper_id"`
	PaperTitle string `json:"paper_title"`
}

func (h *Handler) interpretPaper(c *gin.Context) {
	var req interpretationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.PDFURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "pdf_url is required",
			"example": gin.H{"pdf_url": "https://arxiv.org/pdf/2509.19803.pdf"},
		})
		return
	}
	// Pre-flight validation happens before the stream is opened so a bad URL
	// gets a plain 400 instead of an event.
	if err := h.validateURL(req.PDFURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   err.Error(),
			"pdf_url": req.PDFURL,
		})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	log.Printf("starting interpretation: id=%q title=%q url=%s", req.PaperID, req.PaperTitle, req.PDFURL)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	stream := newEventStream(c.Request.Context(), c.Writer, flusher)
	defer stream.Close()
	stream.StartHeartbeat(heartbeatInterval)

	h.interp.Run(c.Request.Context(), interpret.Request{
		PDFURL:     req.PDFURL,
		PaperID:    req.PaperID,
		PaperTitle: req.PaperTitle,
	}, stream)
}
