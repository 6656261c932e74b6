package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MosinFAM/moderated-blog/internal/auth"
	"github.com/MosinFAM/moderated-blog/internal/moderation"
	"github.com/MosinFAM/moderated-blog/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler serves the blog HTTP API
type Handler struct {
	Storage    storage.Storage
	Moderation *moderation.Service
	Auth       *auth.Service

	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(store storage.Storage, mod *moderation.Service, authSvc *auth.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Storage:    store,
		Moderation: mod,
		Auth:       authSvc,
		logger:     logger.With("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, moderation.ErrPostNotFound):
		status, msg = http.StatusNotFound, "post not found"
	case errors.Is(err, moderation.ErrCommentNotFound):
		status, msg = http.StatusNotFound, "comment not found"
	case errors.Is(err, storage.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, moderation.ErrForbidden):
		status, msg = http.StatusForbidden, "you are not the author"
	case errors.Is(err, moderation.ErrInvalidDraft), errors.Is(err, auth.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrDuplicateEmail):
		status, msg = http.StatusBadRequest, "email already registered"
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		status, msg = http.StatusUnauthorized, err.Error()
	default:
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "err", err)
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
