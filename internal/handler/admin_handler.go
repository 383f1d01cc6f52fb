package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/service"
)

// AdminHandler serves the administrative surface: tags, configuration,
// users and roles, reminder levels, event subscriptions and bootstrap
type AdminHandler struct {
	tagService       *service.TagService
	configService    *service.ConfigService
	userService      *service.UserService
	reminderService  *service.ReminderService
	bootstrapService *service.BootstrapService
}

func NewAdminHandler(
	tagService *service.TagService,
	configService *service.ConfigService,
	userService *service.UserService,
	reminderService *service.ReminderService,
	bootstrapService *service.BootstrapService,
) *AdminHandler {
	return &AdminHandler{
		tagService:       tagService,
		configService:    configService,
		userService:      userService,
		reminderService:  reminderService,
		bootstrapService: bootstrapService,
	}
}

// ==================== Tags ====================

// ListTags godoc
// @Summary List tags
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Param include_hidden query bool false "Include hidden tags"
// @Success 200 {array} model.Tag
// @Router /tags [get]
func (h *AdminHandler) ListTags(c *gin.Context) {
	tags, err := h.tagService.List(c.Request.Context(), c.Query("include_hidden") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag godoc
// @Summary Get a tag
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Param name path string true "Tag name"
// @Success 200 {object} model.Tag
// @Router /tags/{name} [get]
func (h *AdminHandler) GetTag(c *gin.Context) {
	tag, err := h.tagService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// CreateTag godoc
// @Summary Create a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.TagRequest true "Tag"
// @Success 201 {object} model.Tag
// @Router /tags [post]
func (h *AdminHandler) CreateTag(c *gin.Context) {
	var req model.TagRequest
	if !bind(c, &req) {
		return
	}
	tag, err := h.tagService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// UpdateTag godoc
// @Summary Update a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Tag name"
// @Param body body model.TagRequest true "Tag"
// @Success 200 {object} model.Tag
// @Router /tags/{name} [put]
func (h *AdminHandler) UpdateTag(c *gin.Context) {
	var req model.TagRequest
	if !bind(c, &req) {
		return
	}
	tag, err := h.tagService.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// DeleteTag godoc
// @Summary Delete a tag
// @Description Protected tags can only be deleted by a superadmin.
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Param name path string true "Tag name"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /tags/{name} [delete]
func (h *AdminHandler) DeleteTag(c *gin.Context) {
	if err := h.tagService.Delete(c.Request.Context(), c.Param("name"), isSuperadmin(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Tag deleted"})
}

// ==================== Config ====================

// ListConfig godoc
// @Summary List every configuration value
// @Tags Config
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConfigValue
// @Router /config [get]
func (h *AdminHandler) ListConfig(c *gin.Context) {
	values, err := h.configService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// GetConfig godoc
// @Summary Get one configuration value
// @Tags Config
// @Produce json
// @Security BearerAuth
// @Param name path string true "Setting name"
// @Success 200 {object} model.ConfigValue
// @Failure 404 {object} model.ErrorResponse
// @Router /config/{name} [get]
func (h *AdminHandler) GetConfig(c *gin.Context) {
	value, err := h.configService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, value)
}

// UpdateConfig godoc
// @Summary Update configuration values
// @Tags Config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.UpdateConfigRequest true "Values"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /config [put]
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	var req model.UpdateConfigRequest
	if !bind(c, &req) {
		return
	}
	if err := h.configService.Update(c.Request.Context(), req.Configs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Configuration updated"})
}

// ==================== Users & roles ====================

// ListUsers godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page_size query int false "Page size"
// @Param page_token query string false "Page token"
// @Success 200 {object} model.UserListResponse
// @Router /users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	users, next, total, err := h.userService.List(c.Request.Context(), pageSize, c.Query("page_token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserListResponse{Users: users, NextPageToken: next, TotalResults: total})
}

// SetSuperadmin godoc
// @Summary Grant or revoke superadmin
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param email path string true "User e-mail"
// @Param body body model.SetSuperadminRequest true "Flag"
// @Success 200 {object} model.User
// @Router /users/{email}/superadmin [put]
func (h *AdminHandler) SetSuperadmin(c *gin.Context) {
	var req model.SetSuperadminRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.userService.SetSuperadmin(c.Request.Context(), c.Param("email"), req.Superadmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListRoles godoc
// @Summary List roles
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Role
// @Router /roles [get]
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.userService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// GetRole godoc
// @Summary Get a role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param name path string true "Role name"
// @Success 200 {object} model.Role
// @Router /roles/{name} [get]
func (h *AdminHandler) GetRole(c *gin.Context) {
	role, err := h.userService.GetRole(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// SaveRole godoc
// @Summary Create or replace a role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RoleRequest true "Role"
// @Success 200 {object} model.Role
// @Router /roles [put]
func (h *AdminHandler) SaveRole(c *gin.Context) {
	var req model.RoleRequest
	if !bind(c, &req) {
		return
	}
	role, err := h.userService.SaveRole(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// DeleteRole godoc
// @Summary Delete a role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param name path string true "Role name"
// @Success 200 {object} model.SuccessResponse
// @Router /roles/{name} [delete]
func (h *AdminHandler) DeleteRole(c *gin.Context) {
	if err := h.userService.DeleteRole(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Role deleted"})
}

// ==================== Reminders & subscriptions ====================

func levelParam(c *gin.Context) (int, bool) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		respondError(c, apperr.ErrBadInput.Withf("level must be a number"))
		return 0, false
	}
	return level, true
}

// ListReminderEvents godoc
// @Summary List reminder escalation levels
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ReminderEvent
// @Router /reminders [get]
func (h *AdminHandler) ListReminderEvents(c *gin.Context) {
	events, err := h.reminderService.ListReminderEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetReminderEvent godoc
// @Summary Get one reminder level
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param level path int true "Level"
// @Success 200 {object} model.ReminderEvent
// @Router /reminders/{level} [get]
func (h *AdminHandler) GetReminderEvent(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}
	ev, err := h.reminderService.GetReminderEvent(c.Request.Context(), level)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// SaveReminderEvent godoc
// @Summary Create or replace a reminder level
// @Tags Reminders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.ReminderEventRequest true "Reminder level"
// @Success 200 {object} model.ReminderEvent
// @Router /reminders [put]
func (h *AdminHandler) SaveReminderEvent(c *gin.Context) {
	var req model.ReminderEventRequest
	if !bind(c, &req) {
		return
	}
	ev, err := h.reminderService.SaveReminderEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// DeleteReminderEvent godoc
// @Summary Delete a reminder level
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param level path int true "Level"
// @Success 200 {object} model.SuccessResponse
// @Router /reminders/{level} [delete]
func (h *AdminHandler) DeleteReminderEvent(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}
	if err := h.reminderService.DeleteReminderEvent(c.Request.Context(), level); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Reminder level deleted"})
}

// ListSubscriptions godoc
// @Summary List event subscriptions
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.EventSubscription
// @Router /subscriptions [get]
func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	subs, err := h.reminderService.ListSubscriptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// Subscribe godoc
// @Summary Set the actions run for an event
// @Tags Reminders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SubscriptionRequest true "Event and actions"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /subscriptions [put]
func (h *AdminHandler) Subscribe(c *gin.Context) {
	var req model.SubscriptionRequest
	if !bind(c, &req) {
		return
	}
	if err := h.reminderService.Subscribe(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Subscription saved"})
}

// Unsubscribe godoc
// @Summary Remove every action from an event
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param event path string true "Event name"
// @Success 200 {object} model.SuccessResponse
// @Router /subscriptions/{event} [delete]
func (h *AdminHandler) Unsubscribe(c *gin.Context) {
	if err := h.reminderService.Unsubscribe(c.Request.Context(), c.Param("event")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Subscription removed"})
}

// ==================== Bootstrap ====================

// BootstrapStatus godoc
// @Summary Report bootstrap progress
// @Tags Bootstrap
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.BootstrapStatusResponse
// @Router /bootstrap/status [get]
func (h *AdminHandler) BootstrapStatus(c *gin.Context) {
	status, err := h.bootstrapService.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// BootstrapRun godoc
// @Summary Run bootstrap tasks
// @Description An empty task list runs every task.
// @Tags Bootstrap
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.BootstrapRunRequest true "Tasks"
// @Success 200 {object} model.BootstrapStatusResponse
// @Router /bootstrap/run [post]
func (h *AdminHandler) BootstrapRun(c *gin.Context) {
	var req model.BootstrapRunRequest
	if !bind(c, &req) {
		return
	}
	status, err := h.bootstrapService.Run(c.Request.Context(), req.Tasks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
