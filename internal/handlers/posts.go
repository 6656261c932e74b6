package handlers

import (
	"net/http"

	"github.com/MosinFAM/moderated-blog/internal/auth"
	"github.com/MosinFAM/moderated-blog/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.Storage.GetAllPosts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) getPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	post, err := h.Storage.GetPostByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) createPost(c *gin.Context) {
	var draft models.PostDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, "invalid post: "+err.Error())
		return
	}

	post, err := h.Moderation.CreatePost(c.Request.Context(), auth.CurrentUser(c).ID, draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) updatePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var draft models.PostDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, "invalid post: "+err.Error())
		return
	}

	post, err := h.Moderation.UpdatePost(c.Request.Context(), auth.CurrentUser(c).ID, id, draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) deletePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Moderation.DeletePost(c.Request.Context(), auth.CurrentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
