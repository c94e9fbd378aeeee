package api

import (
	"net/http"
	"strconv"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/service"
	apperrors "marketchat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// PostHandler exposes the post directory over REST
type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// List handles GET /posts?page=&page_size=
func (h *PostHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	posts, err := h.posts.List(c.Request.Context(), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// Get handles GET /posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	post, err := h.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Create handles POST /posts
func (h *PostHandler) Create(c *gin.Context) {
	var req models.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("title, content and author are required"))
		return
	}

	post, err := h.posts.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Update handles PUT /posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	var req models.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("title, content and author are required"))
		return
	}

	post, err := h.posts.Update(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Delete handles DELETE /posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchByAuthor handles GET /posts/search/author/:author
func (h *PostHandler) SearchByAuthor(c *gin.Context) {
	posts, err := h.posts.ByAuthor(c.Request.Context(), c.Param("author"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// Search handles GET /posts/search?keyword=
func (h *PostHandler) Search(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.Error(apperrors.NewValidationError("keyword query parameter is required"))
		return
	}

	posts, err := h.posts.Search(c.Request.Context(), keyword)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, posts)
}
