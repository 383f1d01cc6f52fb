package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/service"
)

// ShelfHandler handles shelf endpoints. Shelves are addressed by ID or location.
type ShelfHandler struct {
	shelfService *service.ShelfService
}

func NewShelfHandler(shelfService *service.ShelfService) *ShelfHandler {
	return &ShelfHandler{shelfService: shelfService}
}

// Enroll godoc
// @Summary Create a shelf
// @Tags Shelves
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.EnrollShelfRequest true "Shelf"
// @Success 201 {object} model.Shelf
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /shelves [post]
func (h *ShelfHandler) Enroll(c *gin.Context) {
	var req model.EnrollShelfRequest
	if !bind(c, &req) {
		return
	}

	shelf, err := h.shelfService.Enroll(c.Request.Context(), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, shelf)
}

// Get godoc
// @Summary Get a shelf
// @Tags Shelves
// @Produce json
// @Security BearerAuth
// @Param key path string true "Shelf ID or location"
// @Success 200 {object} model.Shelf
// @Failure 404 {object} model.ErrorResponse
// @Router /shelves/{key} [get]
func (h *ShelfHandler) Get(c *gin.Context) {
	shelf, err := h.shelfService.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelf)
}

// List godoc
// @Summary List shelves
// @Tags Shelves
// @Produce json
// @Security BearerAuth
// @Param page_size query int false "Page size"
// @Param page_token query string false "Page token"
// @Param enabled query bool false "Enabled filter (defaults to true; pass false for disabled shelves)"
// @Param query query string false "Location or friendly name"
// @Success 200 {object} model.ShelfListResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /shelves [get]
func (h *ShelfHandler) List(c *gin.Context) {
	var req model.ListShelvesRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.shelfService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary Update a shelf
// @Tags Shelves
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Shelf ID or location"
// @Param body body model.UpdateShelfRequest true "Fields to change"
// @Success 200 {object} model.Shelf
// @Router /shelves/{key} [patch]
func (h *ShelfHandler) Update(c *gin.Context) {
	var req model.UpdateShelfRequest
	if !bind(c, &req) {
		return
	}

	shelf, err := h.shelfService.Update(c.Request.Context(), c.Param("key"), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelf)
}

// Disable godoc
// @Summary Disable a shelf
// @Tags Shelves
// @Produce json
// @Security BearerAuth
// @Param key path string true "Shelf ID or location"
// @Success 200 {object} model.Shelf
// @Router /shelves/{key}/disable [post]
func (h *ShelfHandler) Disable(c *gin.Context) {
	shelf, err := h.shelfService.Disable(c.Request.Context(), c.Param("key"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelf)
}

// Audit godoc
// @Summary Record the devices physically present on a shelf
// @Tags Shelves
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Shelf ID or location"
// @Param body body model.AuditShelfRequest true "Device identifiers"
// @Success 200 {object} model.Shelf
// @Failure 409 {object} model.ErrorResponse
// @Failure 412 {object} model.ErrorResponse
// @Router /shelves/{key}/audit [post]
func (h *ShelfHandler) Audit(c *gin.Context) {
	var req model.AuditShelfRequest
	if !bind(c, &req) {
		return
	}

	shelf, err := h.shelfService.Audit(c.Request.Context(), c.Param("key"), req.DeviceIdentifiers, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelf)
}
