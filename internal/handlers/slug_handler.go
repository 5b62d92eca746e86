package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imuhira/backend/internal/slug"
)

// DeriveSlug suggests a slug for the admin form's title field
func DeriveSlug(c *gin.Context) {
	title := c.Query("title")
	if strings.TrimSpace(title) == "" {
		ErrorResponse(c, http.StatusBadRequest, "title is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": slug.Derive(title)})
}
