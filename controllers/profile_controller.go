package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/models"
)

// GetMe handles GET /api/v1/profiles/me - returns the caller's profile
func GetMe(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var profile models.Profile
	if err := config.GetDB().First(&profile, userID).Error; err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Profile not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}

// ListAdmins handles GET /api/v1/admins - lists processing providers a client
// can select when submitting an order
func ListAdmins(c *gin.Context) {
	var admins []models.Profile
	if err := config.GetDB().Where("role = ?", "admin").Order("name asc").Find(&admins).Error; err != nil {
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load providers")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": admins})
}
