package handlers

import (
	"net/http"

	"storefront-svc/apperr"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err as a JSON failure. Internal failures are logged and
// replaced by a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error, logMsg string) {
	status := apperr.HTTPStatus(err)
	if !apperr.Public(err) || status >= http.StatusInternalServerError {
		logger.Error(logMsg,
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	if !apperr.Public(err) {
		c.JSON(status, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

// currentUser returns the authenticated caller or writes a 401.
func currentUser(c *gin.Context) (models.Claims, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthenticated user"})
		return models.Claims{}, false
	}
	return claims, true
}
