package handlers

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/cors"
)

const requestIDKey = "request_id"

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "blog_http_request_duration_seconds",
	Help: "HTTP request latency by route and status",
}, []string{"method", "route", "status"})

// Router builds the gin engine wrapped in CORS handling. allowedOrigins
// also gates websocket upgrades; empty means any origin.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	wildcard := slices.Contains(allowedOrigins, "*")
	h.upgrader.CheckOrigin = originChecker(allowedOrigins, wildcard)

	r := gin.New()
	r.Use(h.requestLogger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("panic in handler", "path", c.FullPath(), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}))

	r.GET("/healthz", h.healthz)
	r.POST("/register", h.register)
	r.POST("/token", h.token)

	authed := r.Group("/", h.Auth.RequireUser())
	authed.GET("/posts", h.listPosts)
	authed.POST("/posts", h.createPost)
	authed.GET("/posts/:id", h.getPost)
	authed.PUT("/posts/:id", h.updatePost)
	authed.DELETE("/posts/:id", h.deletePost)

	authed.GET("/comments", h.listComments)
	authed.POST("/comments", h.createComment)
	authed.GET("/comments/:id", h.getComment)
	authed.PUT("/comments/:id", h.updateComment)
	authed.DELETE("/comments/:id", h.deleteComment)
	authed.GET("/comments-daily-breakdown", h.commentsDailyBreakdown)

	authed.GET("/ws/posts/:id/comments", h.streamComments)

	// tokens travel in the Authorization header, never in cookies
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: !wildcard,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
	})
	return c.Handler(r)
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from a listed origin
func originChecker(allowed []string, wildcard bool) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if wildcard || origin == "" {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return strings.EqualFold(o, origin)
		})
	}
}

// requestLogger tags every request with an id and logs its outcome
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header("X-Request-Id", reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		h.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", reqID,
		)
	}
}
