package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/auth"
	"github.com/MosinFAM/moderated-blog/internal/models"
	"github.com/MosinFAM/moderated-blog/internal/storage"

	"github.com/gin-gonic/gin"
)

func queryInt(c *gin.Context, name string) (int64, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false, strconv.ErrSyntax
	}
	return v, true, nil
}

func (h *Handler) listComments(c *gin.Context) {
	var filter storage.CommentFilter

	postID, ok, err := queryInt(c, "post_id")
	if err != nil {
		h.badRequest(c, "invalid post_id")
		return
	}
	if ok {
		filter.PostID = &postID
	}
	limit, _, err := queryInt(c, "limit")
	if err != nil {
		h.badRequest(c, "invalid limit")
		return
	}
	offset, _, err := queryInt(c, "offset")
	if err != nil {
		h.badRequest(c, "invalid offset")
		return
	}
	filter.Limit = int(limit)
	filter.Offset = int(offset)

	comments, err := h.Storage.GetComments(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) getComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	comment, err := h.Storage.GetCommentByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) createComment(c *gin.Context) {
	var draft models.CommentDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, "invalid comment: "+err.Error())
		return
	}

	comment, err := h.Moderation.CreateComment(c.Request.Context(), auth.CurrentUser(c).ID, draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) updateComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var draft models.CommentDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, "invalid comment: "+err.Error())
		return
	}

	comment, err := h.Moderation.UpdateComment(c.Request.Context(), auth.CurrentUser(c).ID, id, draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) deleteComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Moderation.DeleteComment(c.Request.Context(), auth.CurrentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// commentsDailyBreakdown counts comments per day for an inclusive date range
func (h *Handler) commentsDailyBreakdown(c *gin.Context) {
	from, err := time.Parse(models.DayLayout, c.Query("date_from"))
	if err != nil {
		h.badRequest(c, "date_from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(models.DayLayout, c.Query("date_to"))
	if err != nil {
		h.badRequest(c, "date_to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		h.badRequest(c, "date_to is before date_from")
		return
	}

	rows, err := h.Storage.CommentsDailyBreakdown(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
