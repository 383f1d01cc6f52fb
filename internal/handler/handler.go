// Package handler exposes the loaner operations over HTTP.
package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/middleware"
	"github.com/grabngo/loaner/internal/model"
)

// respondError writes err with the status of its kind
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, model.ErrorResponse{Error: apperr.CodeOf(err), Message: err.Error()})
}

// bind decodes the JSON body into req and answers 400 when it cannot
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return false
	}
	return true
}

// actor is the e-mail of the signed-in caller
func actor(c *gin.Context) string {
	return c.GetString(middleware.EmailKey)
}

func isSuperadmin(c *gin.Context) bool {
	claims := middleware.Claims(c)
	return claims != nil && claims.Superadmin
}

func can(c *gin.Context, perm model.Permission) bool {
	claims := middleware.Claims(c)
	return claims != nil && claims.Can(string(perm))
}
