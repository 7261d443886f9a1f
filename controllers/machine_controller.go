package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/store"
)

// CreateMachineRequest represents the request body for registering a machine
type CreateMachineRequest struct {
	Name       string  `json:"name" binding:"required"`
	Code       string  `json:"code" binding:"required"`
	CapacityKg float64 `json:"capacity_kg" binding:"required,gt=0"`
	Notes      string  `json:"notes"`
}

// UpdateMachineRequest represents the request body for editing a machine
type UpdateMachineRequest struct {
	Name       *string  `json:"name"`
	CapacityKg *float64 `json:"capacity_kg"`
	Status     *string  `json:"status"`
	Notes      *string  `json:"notes"`
}

// ListMachines handles GET /api/v1/machines (admins only). With
// ?available=true only machines assignable to new orders are returned.
func ListMachines(c *gin.Context) {
	if c.Query("available") == "true" {
		st := store.NewGormStore(config.GetDB())
		machines, err := st.ListAvailableMachines()
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load machines")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": machines})
		return
	}

	var machines []models.Machine
	if err := config.GetDB().Order("code asc").Find(&machines).Error; err != nil {
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load machines")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": machines})
}

// CreateMachine handles POST /api/v1/machines (admins only)
func CreateMachine(c *gin.Context) {
	var req CreateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data: "+err.Error())
		return
	}

	machine := models.Machine{
		Name:       req.Name,
		Code:       req.Code,
		CapacityKg: req.CapacityKg,
		Status:     models.MachineAvailable,
		Notes:      req.Notes,
	}

	if err := config.GetDB().Create(&machine).Error; err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "unique") || strings.Contains(errMsg, "duplicate") {
			writeError(c, http.StatusConflict, "MACHINE_EXISTS", "A machine with this code already exists")
			return
		}
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create machine")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": machine})
}

// UpdateMachine handles PUT /api/v1/machines/:id (admins only). Status edits
// here cover maintenance and offline; in_use/available flips tied to orders
// belong to the lifecycle controller.
func UpdateMachine(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid machine id")
		return
	}

	var req UpdateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data: "+err.Error())
		return
	}

	db := config.GetDB()
	var machine models.Machine
	if err := db.First(&machine, uint(id)).Error; err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Machine not found")
		return
	}

	if req.Name != nil {
		machine.Name = *req.Name
	}
	if req.CapacityKg != nil {
		if *req.CapacityKg <= 0 {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "capacity_kg must be positive")
			return
		}
		machine.CapacityKg = *req.CapacityKg
	}
	if req.Status != nil {
		status := models.MachineStatus(*req.Status)
		switch status {
		case models.MachineAvailable, models.MachineInUse, models.MachineMaintenance, models.MachineOffline:
			machine.Status = status
		default:
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid machine status")
			return
		}
	}
	if req.Notes != nil {
		machine.Notes = *req.Notes
	}

	if err := db.Save(&machine).Error; err != nil {
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update machine")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": machine})
}
