package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/study-planner-api/pkg/models"
	"github.com/arnavshah/study-planner-api/pkg/scheduler"
)

// ValidateInput checks the link and exclusive relationships of a set of units
// without placing anything
func (h *Handler) ValidateInput(c *gin.Context) {
	var input struct {
		Units []models.ContentUnit `json:"content_units" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	result := scheduler.ValidateRelationships(input.Units)
	c.JSON(http.StatusOK, gin.H{
		"valid":    result.Valid,
		"errors":   result.Errors,
		"warnings": result.Warnings,
		"stats": gin.H{
			"unit_count": len(input.Units),
		},
	})
}
