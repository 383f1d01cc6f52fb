package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the management frontend origins and the loaner
// Chrome extension. Extension requests arrive from chrome-extension://<id>.
func CORSMiddleware(origins, extensionIDs []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(origins)+len(extensionIDs))
	allowed = append(allowed, origins...)
	for _, id := range extensionIDs {
		allowed = append(allowed, "chrome-extension://"+id)
	}
	return cors.New(cors.Config{
		AllowOrigins:           allowed,
		AllowMethods:           []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:          []string{"Content-Length"},
		AllowCredentials:       true,
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	})
}
