package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evalsum/internal/logging"
	"evalsum/internal/metrics"
	"evalsum/internal/models"
	"evalsum/internal/ratelimit"
	"evalsum/internal/service/ai"
	"evalsum/internal/service/evaluation"
	"evalsum/internal/upload"
)

type FormParser interface {
	Parse(w http.ResponseWriter, r *http.Request) (*upload.Form, error)
}

type Pipeline interface {
	Summarize(ctx context.Context, req evaluation.Request) (*models.SummaryResult, error)
}

type KeyChecker interface {
	Provider() string
	Rules() ai.KeyRules
	ValidFormat(key string) bool
	Check(ctx context.Context, key string) (bool, error)
}

// Pinger is a dependency checked by GET /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// Options configure optional handler behavior.
type Options struct {
	// Development adds the error stack to 500 responses.
	Development   bool
	AllowedOrigin string
	CheckTimeout  time.Duration
	Limiter       ratelimit.Limiter
	// Runs enables GET /api/runs when set.
	Runs RunLister
	// Readiness lists the backends GET /readyz pings, by name.
	Readiness map[string]Pinger
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	readyTimeout     = 2 * time.Second
)

// Handler wires HTTP routes to the evaluation pipeline and key validator.
type Handler struct {
	uploads  FormParser
	pipeline Pipeline
	keys     KeyChecker
	opts     Options
	logger   *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(uploads FormParser, pipeline Pipeline, keys KeyChecker, opts Options, logger *zap.Logger) *Handler {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		uploads:  uploads,
		pipeline: pipeline,
		keys:     keys,
		opts:     opts,
		logger:   logger.Named("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	router.GET("/healthz", h.health)
	router.GET("/readyz", h.ready)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.Use(h.cors())
	api.OPTIONS("/upload", h.preflight)
	api.POST("/upload", h.throttle(), h.uploadEvaluation)
	api.OPTIONS("/test-key", h.preflight)
	api.POST("/test-key", h.throttle(), h.testKey)
	if h.opts.Runs != nil {
		api.GET("/runs", h.listRuns)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	failed := make([]string, 0)
	for name, dep := range h.opts.Readiness {
		if err := dep.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *Handler) uploadEvaluation(c *gin.Context) {
	form, err := h.uploads.Parse(c.Writer, c.Request)
	if err != nil {
		metrics.RecordFailure(string(models.KindOf(err)))
		h.respondError(c, err)
		return
	}
	result, err := h.pipeline.Summarize(c.Request.Context(), evaluation.Request{
		APIKey: form.APIKey,
		File:   form.File,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result.Text})
}

type testKeyRequest struct {
	APIKey string `json:"apiKey"`
}

func (h *Handler) testKey(c *gin.Context) {
	var req testKeyRequest
	// an unreadable body is reported as a missing key
	_ = c.ShouldBindJSON(&req)
	key := strings.TrimSpace(req.APIKey)

	if !h.keys.ValidFormat(key) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Please provide a valid %s API key (starts with %s)",
				ai.ProviderLabel(h.keys.Provider()), h.keys.Rules().Prefix),
			"valid": false,
		})
		return
	}

	ctx := c.Request.Context()
	if h.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.CheckTimeout)
		defer cancel()
	}
	ok, err := h.keys.Check(ctx, key)
	if err != nil {
		logging.FromContext(ctx).Error("key check failed", zap.String("key", ai.MaskKey(key)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to validate API key. Please try again.", "valid": false})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key. Please check your key and try again.", "valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.opts.Runs.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	classified := models.AsError(err)
	status := models.HTTPStatus(classified.Kind)
	_ = c.Error(err)

	body := gin.H{"error": classified.Message}
	if status >= http.StatusInternalServerError && h.opts.Development {
		body["stack"] = classified.Stack()
	}
	c.JSON(status, body)
}
