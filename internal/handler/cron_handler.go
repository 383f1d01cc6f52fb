package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/cron"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/pkg/storage"
)

// CronHandler lets an external scheduler trigger the periodic jobs
type CronHandler struct {
	scheduler *cron.Scheduler
}

func NewCronHandler(scheduler *cron.Scheduler) *CronHandler {
	return &CronHandler{scheduler: scheduler}
}

// Run godoc
// @Summary Run a periodic job now
// @Description Jobs: reminders, shelf_audit, backup, role_sync. A failed backup upload answers with the storage service's status.
// @Tags Cron
// @Produce json
// @Param X-Cron-Token header string true "Cron token"
// @Param job path string true "Job name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} model.ErrorResponse
// @Router /_cron/{job} [post]
func (h *CronHandler) Run(c *gin.Context) {
	job := c.Param("job")
	res, err := h.scheduler.Trigger(c.Request.Context(), job)
	switch {
	case errors.Is(err, cron.ErrUnknownJob):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "UnknownJob", Message: err.Error()})
		return
	case errors.Is(err, apperr.ErrBackupUpload):
		c.JSON(storage.StatusCode(err), model.ErrorResponse{Error: apperr.CodeOf(err), Message: err.Error()})
		return
	case err != nil:
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job, "result": res})
}
