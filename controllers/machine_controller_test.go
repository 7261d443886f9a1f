package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostbean/freezedry-api/models"
)

func machineRouter(env *testEnv) http.Handler {
	router := setupTestRouter()
	auth := mockAuthMiddleware(env.admin.ID, "admin")
	router.GET("/machines", auth, ListMachines)
	router.POST("/machines", auth, CreateMachine)
	router.PUT("/machines/:id", auth, UpdateMachine)
	return router
}

func TestCreateMachineEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	router := machineRouter(env)

	w, response := performJSON(t, router, http.MethodPost, "/machines", map[string]interface{}{
		"name":        "FD Unit 1",
		"code":        "FD-01",
		"capacity_kg": 50,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "FD-01", data["code"])
	assert.Equal(t, "available", data["status"])

	// Duplicate machine code
	w, response = performJSON(t, router, http.MethodPost, "/machines", map[string]interface{}{
		"name":        "FD Unit 1 again",
		"code":        "FD-01",
		"capacity_kg": 50,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assertErrorCode(t, response, "MACHINE_EXISTS")

	// Missing capacity
	w, response = performJSON(t, router, http.MethodPost, "/machines", map[string]interface{}{
		"name": "FD Unit 2",
		"code": "FD-02",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assertErrorCode(t, response, "VALIDATION_ERROR")
}

func TestListMachinesAvailableFilter(t *testing.T) {
	env := setupTestEnv(t)
	env.db.Create(&models.Machine{Name: "A", Code: "FD-01", CapacityKg: 50, Status: models.MachineAvailable})
	env.db.Create(&models.Machine{Name: "B", Code: "FD-02", CapacityKg: 50, Status: models.MachineMaintenance})
	router := machineRouter(env)

	w, response := performJSON(t, router, http.MethodGet, "/machines", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["data"], 2)

	w, response = performJSON(t, router, http.MethodGet, "/machines?available=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	machines := response["data"].([]interface{})
	require.Len(t, machines, 1)
	assert.Equal(t, "FD-01", machines[0].(map[string]interface{})["code"])
}

func TestUpdateMachineEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	machine := models.Machine{Name: "FD Unit 1", Code: "FD-01", CapacityKg: 50, Status: models.MachineAvailable}
	env.db.Create(&machine)
	router := machineRouter(env)
	path := fmt.Sprintf("/machines/%d", machine.ID)

	w, response := performJSON(t, router, http.MethodPut, path, map[string]interface{}{
		"status": "maintenance",
		"notes":  "annual vacuum pump service",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "maintenance", data["status"])

	// Unknown status value
	w, response = performJSON(t, router, http.MethodPut, path, map[string]interface{}{
		"status": "exploded",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assertErrorCode(t, response, "VALIDATION_ERROR")

	// Non-positive capacity
	w, response = performJSON(t, router, http.MethodPut, path, map[string]interface{}{
		"capacity_kg": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assertErrorCode(t, response, "VALIDATION_ERROR")

	// Missing machine
	w, response = performJSON(t, router, http.MethodPut, "/machines/9999", map[string]interface{}{
		"notes": "x",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assertErrorCode(t, response, "NOT_FOUND")
}
