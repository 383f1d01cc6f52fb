package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/service"
)

// DeviceHandler handles device lifecycle and loan endpoints
type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// ownerOr lets the call through when the caller holds perm or is the
// device's borrower
func (h *DeviceHandler) ownerOr(c *gin.Context, ident model.DeviceIdentifier, perm model.Permission) bool {
	if can(c, perm) {
		return true
	}
	d, err := h.deviceService.Get(c.Request.Context(), ident)
	if err != nil {
		respondError(c, err)
		return false
	}
	if d.AssignedUser == "" || d.AssignedUser != actor(c) {
		respondError(c, apperr.ErrPermissionDenied.Withf("missing permission %s", perm))
		return false
	}
	return true
}

// ==================== Fleet ====================

// Enroll godoc
// @Summary Enroll a device into the loaner program
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.EnrollDeviceRequest true "Serial number and/or asset tag"
// @Success 201 {object} model.Device
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /devices/enroll [post]
func (h *DeviceHandler) Enroll(c *gin.Context) {
	var req model.EnrollDeviceRequest
	if !bind(c, &req) {
		return
	}

	device, err := h.deviceService.Enroll(c.Request.Context(), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, device)
}

// Unenroll godoc
// @Summary Remove a device from the program
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/unenroll [post]
func (h *DeviceHandler) Unenroll(c *gin.Context) {
	var ident model.DeviceIdentifier
	if !bind(c, &ident) {
		return
	}

	device, err := h.deviceService.Unenroll(c.Request.Context(), ident, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Get godoc
// @Summary Look up a device by any identifier
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Param urlkey query string false "URL-safe key"
// @Param chrome_device_id query string false "Chrome device ID"
// @Param asset_tag query string false "Asset tag"
// @Param serial_number query string false "Serial number"
// @Param identifier query string false "Any of the above"
// @Success 200 {object} model.Device
// @Failure 404 {object} model.ErrorResponse
// @Router /devices/lookup [get]
func (h *DeviceHandler) Get(c *gin.Context) {
	var ident model.DeviceIdentifier
	if !bindQuery(c, &ident) {
		return
	}

	device, err := h.deviceService.Get(c.Request.Context(), ident)
	if err != nil {
		respondError(c, err)
		return
	}
	if device.AssignedUser != actor(c) && !can(c, model.PermissionReadDevices) {
		respondError(c, apperr.ErrPermissionDenied.Withf("missing permission %s", model.PermissionReadDevices))
		return
	}

	c.JSON(http.StatusOK, device)
}

// List godoc
// @Summary List devices
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Param page_size query int false "Page size"
// @Param page_token query string false "Page token"
// @Param enrolled query bool false "Enrolled filter"
// @Param assigned_user query string false "Borrower"
// @Param shelf query string false "Shelf ID or location"
// @Param tag query string false "Tag name"
// @Param query query string false "Free text"
// @Success 200 {object} model.DeviceListResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	var req model.ListDevicesRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.deviceService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListMine godoc
// @Summary List the caller's loaned devices
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Device
// @Router /devices/mine [get]
func (h *DeviceHandler) ListMine(c *gin.Context) {
	devices, err := h.deviceService.ListUserDevices(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, devices)
}

// Heartbeat godoc
// @Summary Device check-in
// @Description Called by the Chrome app. A bearer token, when present, names the signed-in user.
// @Tags Devices
// @Accept json
// @Produce json
// @Param body body model.HeartbeatRequest true "Heartbeat"
// @Success 200 {object} model.HeartbeatResponse
// @Failure 429 {object} model.ErrorResponse
// @Router /devices/heartbeat [post]
func (h *DeviceHandler) Heartbeat(c *gin.Context) {
	var req model.HeartbeatRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.deviceService.Heartbeat(c.Request.Context(), req.DeviceID, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ==================== Loans ====================

// Assign godoc
// @Summary Loan a device
// @Description Assigns to the caller unless user_email names someone else, which needs enroll_device.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.AssignDeviceRequest true "Device and borrower"
// @Success 200 {object} model.Device
// @Failure 409 {object} model.ErrorResponse
// @Failure 412 {object} model.ErrorResponse
// @Router /devices/assign [post]
func (h *DeviceHandler) Assign(c *gin.Context) {
	var req model.AssignDeviceRequest
	if !bind(c, &req) {
		return
	}
	user := req.UserEmail
	if user == "" {
		user = actor(c)
	}
	if user != actor(c) && !can(c, model.PermissionEnrollDevice) {
		respondError(c, apperr.ErrPermissionDenied.Withf("cannot assign devices to other users"))
		return
	}

	device, err := h.deviceService.Assign(c.Request.Context(), req.DeviceIdentifier, user, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Extend godoc
// @Summary Extend the caller's loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.ExtendLoanRequest true "Device and new due date"
// @Success 200 {object} model.Device
// @Failure 403 {object} model.ErrorResponse
// @Failure 412 {object} model.ErrorResponse
// @Router /devices/extend [post]
func (h *DeviceHandler) Extend(c *gin.Context) {
	var req model.ExtendLoanRequest
	if !bind(c, &req) {
		return
	}

	device, err := h.deviceService.Extend(c.Request.Context(), req.DeviceIdentifier, actor(c), req.ExtendDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

type identAction func(ctx context.Context, ident model.DeviceIdentifier, user string) (*model.Device, error)

// runIdent binds a device identifier and runs fn as the caller
func (h *DeviceHandler) runIdent(c *gin.Context, fn identAction) {
	var ident model.DeviceIdentifier
	if !bind(c, &ident) {
		return
	}

	device, err := fn(c.Request.Context(), ident, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// MarkPendingReturn godoc
// @Summary Tell the service the caller is returning the device
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/pending-return [post]
func (h *DeviceHandler) MarkPendingReturn(c *gin.Context) {
	h.runIdent(c, h.deviceService.MarkPendingReturn)
}

// ResumeLoan godoc
// @Summary Cancel a pending return
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/resume [post]
func (h *DeviceHandler) ResumeLoan(c *gin.Context) {
	h.runIdent(c, h.deviceService.ResumeLoan)
}

// EnableGuestMode godoc
// @Summary Enable guest sign-in on the caller's device
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Failure 400 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /devices/guest [post]
func (h *DeviceHandler) EnableGuestMode(c *gin.Context) {
	h.runIdent(c, h.deviceService.EnableGuestMode)
}

// ==================== Flags ====================

// Lock godoc
// @Summary Disable a device and move it to the locked OU
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/lock [post]
func (h *DeviceHandler) Lock(c *gin.Context) {
	h.runIdent(c, h.deviceService.Lock)
}

// Unlock godoc
// @Summary Re-enable a locked device
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/unlock [post]
func (h *DeviceHandler) Unlock(c *gin.Context) {
	h.runIdent(c, h.deviceService.Unlock)
}

// MarkDamaged godoc
// @Summary Report a device as damaged
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DamagedRequest true "Device and reason"
// @Success 200 {object} model.Device
// @Router /devices/damaged [post]
func (h *DeviceHandler) MarkDamaged(c *gin.Context) {
	var req model.DamagedRequest
	if !bind(c, &req) {
		return
	}
	if !h.ownerOr(c, req.DeviceIdentifier, model.PermissionMarkDamaged) {
		return
	}

	device, err := h.deviceService.MarkDamaged(c.Request.Context(), req.DeviceIdentifier, actor(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// MarkLost godoc
// @Summary Report a device as lost
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceIdentifier true "Device"
// @Success 200 {object} model.Device
// @Router /devices/lost [post]
func (h *DeviceHandler) MarkLost(c *gin.Context) {
	var ident model.DeviceIdentifier
	if !bind(c, &ident) {
		return
	}
	if !h.ownerOr(c, ident, model.PermissionMarkLost) {
		return
	}

	device, err := h.deviceService.MarkLost(c.Request.Context(), ident, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// AuditCheck godoc
// @Summary Check whether a device may be placed on a shelf
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Param identifier query string true "Any device identifier"
// @Success 200 {object} model.Device
// @Failure 412 {object} model.ErrorResponse
// @Router /devices/audit-check [get]
func (h *DeviceHandler) AuditCheck(c *gin.Context) {
	var ident model.DeviceIdentifier
	if !bindQuery(c, &ident) {
		return
	}

	device, err := h.deviceService.DeviceAuditCheck(c.Request.Context(), ident)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// ==================== Tags ====================

// AddTag godoc
// @Summary Tag a device
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceTagRequest true "Device and tag"
// @Success 200 {object} model.Device
// @Router /devices/tags [post]
func (h *DeviceHandler) AddTag(c *gin.Context) {
	var req model.DeviceTagRequest
	if !bind(c, &req) {
		return
	}

	device, err := h.deviceService.AddTag(c.Request.Context(), req.DeviceIdentifier, req.TagName, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// RemoveTag godoc
// @Summary Untag a device
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DeviceTagRequest true "Device and tag"
// @Success 200 {object} model.Device
// @Router /devices/tags [delete]
func (h *DeviceHandler) RemoveTag(c *gin.Context) {
	var req model.DeviceTagRequest
	if !bind(c, &req) {
		return
	}

	device, err := h.deviceService.RemoveTag(c.Request.Context(), req.DeviceIdentifier, req.TagName, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}
