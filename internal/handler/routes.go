package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/middleware"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/pkg/auth"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Handlers groups every endpoint set; nil members are not mounted
type Handlers struct {
	Auth   *AuthHandler
	Device *DeviceHandler
	Shelf  *ShelfHandler
	Admin  *AdminHandler
	Survey *SurveyHandler
	Cron   *CronHandler
	WS     *WSHandler
}

// RouteOptions carries what the middlewares need
type RouteOptions struct {
	JWT            *auth.JWTManager
	Redis          *redis.Client
	CronToken      string
	HeartbeatRate  rate.Limit
	HeartbeatBurst int
}

// Register mounts the API under /api/v1, the cron endpoints under /_cron
// and the event feed at /ws/events
func (hs *Handlers) Register(r *gin.Engine, opts RouteOptions) {
	authMW := middleware.AuthMiddleware(opts.JWT, opts.Redis)
	perm := middleware.RequirePermission

	if hs.WS != nil {
		r.GET("/ws/events", hs.WS.HandleWebSocket)
	}
	if hs.Cron != nil {
		r.POST("/_cron/:job", middleware.CronToken(opts.CronToken), hs.Cron.Run)
	}

	api := r.Group("/api/v1")

	// Auth
	if hs.Auth != nil {
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/google", hs.Auth.GoogleLogin)
			authGroup.GET("/me", authMW, hs.Auth.Me)
			authGroup.POST("/logout", authMW, hs.Auth.Logout)
		}
	}

	// Devices
	if hs.Device != nil {
		d := hs.Device
		burst := opts.HeartbeatBurst
		if burst <= 0 {
			burst = 10
		}
		limit := opts.HeartbeatRate
		if limit == 0 {
			limit = rate.Limit(1)
		}
		api.POST("/devices/heartbeat",
			middleware.RateLimit(limit, burst, nil),
			middleware.OptionalAuth(opts.JWT, opts.Redis),
			d.Heartbeat,
		)

		devices := api.Group("/devices", authMW)
		{
			devices.GET("", perm(model.PermissionReadDevices), d.List)
			devices.GET("/mine", d.ListMine)
			devices.GET("/lookup", d.Get)
			devices.GET("/audit-check", perm(model.PermissionAuditShelf), d.AuditCheck)
			devices.POST("/enroll", perm(model.PermissionEnrollDevice), d.Enroll)
			devices.POST("/unenroll", perm(model.PermissionUnenrollDevice), d.Unenroll)
			devices.POST("/assign", d.Assign)
			devices.POST("/extend", d.Extend)
			devices.POST("/pending-return", d.MarkPendingReturn)
			devices.POST("/resume", d.ResumeLoan)
			devices.POST("/guest", d.EnableGuestMode)
			devices.POST("/lock", perm(model.PermissionLockDevice), d.Lock)
			devices.POST("/unlock", perm(model.PermissionUnlockDevice), d.Unlock)
			devices.POST("/damaged", d.MarkDamaged)
			devices.POST("/lost", d.MarkLost)
			devices.POST("/tags", perm(model.PermissionModifyTag), d.AddTag)
			devices.DELETE("/tags", perm(model.PermissionModifyTag), d.RemoveTag)
		}
	}

	// Shelves
	if hs.Shelf != nil {
		s := hs.Shelf
		shelves := api.Group("/shelves", authMW)
		{
			shelves.GET("", perm(model.PermissionReadShelves), s.List)
			shelves.GET("/:key", perm(model.PermissionReadShelves), s.Get)
			shelves.POST("", perm(model.PermissionModifyShelf), s.Enroll)
			shelves.PATCH("/:key", perm(model.PermissionModifyShelf), s.Update)
			shelves.POST("/:key/disable", perm(model.PermissionModifyShelf), s.Disable)
			shelves.POST("/:key/audit", perm(model.PermissionAuditShelf), s.Audit)
		}
	}

	// Surveys
	if hs.Survey != nil {
		s := hs.Survey
		surveys := api.Group("/surveys", authMW)
		{
			surveys.GET("/random", s.Random)
			surveys.POST("/submit", s.Submit)
			surveys.GET("/questions", perm(model.PermissionReadSurveys), s.ListQuestions)
			surveys.GET("/questions/:id", perm(model.PermissionReadSurveys), s.GetQuestion)
			surveys.GET("/questions/:id/responses", perm(model.PermissionReadSurveys), s.ListResponses)
			surveys.POST("/questions", perm(model.PermissionModifySurvey), s.CreateQuestion)
			surveys.PUT("/questions/:id", perm(model.PermissionModifySurvey), s.UpdateQuestion)
			surveys.DELETE("/questions/:id", perm(model.PermissionModifySurvey), s.DeleteQuestion)
		}
	}

	// Administration
	if hs.Admin != nil {
		a := hs.Admin
		admin := api.Group("", authMW)
		{
			admin.GET("/tags", a.ListTags)
			admin.GET("/tags/:name", a.GetTag)
			admin.POST("/tags", perm(model.PermissionModifyTag), a.CreateTag)
			admin.PUT("/tags/:name", perm(model.PermissionModifyTag), a.UpdateTag)
			admin.DELETE("/tags/:name", perm(model.PermissionModifyTag), a.DeleteTag)

			admin.GET("/config", perm(model.PermissionReadConfigs), a.ListConfig)
			admin.GET("/config/:name", perm(model.PermissionReadConfigs), a.GetConfig)
			admin.PUT("/config", perm(model.PermissionModifyConfig), a.UpdateConfig)

			admin.GET("/users", perm(model.PermissionReadUsers), a.ListUsers)
			admin.PUT("/users/:email/superadmin", middleware.RequireSuperadmin(), a.SetSuperadmin)
			admin.GET("/roles", perm(model.PermissionReadUsers), a.ListRoles)
			admin.GET("/roles/:name", perm(model.PermissionReadUsers), a.GetRole)
			admin.PUT("/roles", perm(model.PermissionModifyRole), a.SaveRole)
			admin.DELETE("/roles/:name", perm(model.PermissionModifyRole), a.DeleteRole)

			admin.GET("/reminders", perm(model.PermissionModifyReminders), a.ListReminderEvents)
			admin.GET("/reminders/:level", perm(model.PermissionModifyReminders), a.GetReminderEvent)
			admin.PUT("/reminders", perm(model.PermissionModifyReminders), a.SaveReminderEvent)
			admin.DELETE("/reminders/:level", perm(model.PermissionModifyReminders), a.DeleteReminderEvent)

			admin.GET("/subscriptions", perm(model.PermissionModifySubscription), a.ListSubscriptions)
			admin.PUT("/subscriptions", perm(model.PermissionModifySubscription), a.Subscribe)
			admin.DELETE("/subscriptions/:event", perm(model.PermissionModifySubscription), a.Unsubscribe)

			admin.GET("/bootstrap/status", perm(model.PermissionBootstrap), a.BootstrapStatus)
			admin.POST("/bootstrap/run", perm(model.PermissionBootstrap), a.BootstrapRun)
		}
	}
}
