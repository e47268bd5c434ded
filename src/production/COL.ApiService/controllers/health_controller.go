package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/health"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
)

const readinessTimeout = 2 * time.Second

// HealthController handles liveness and readiness probes
type HealthController struct {
	checker *health.HealthChecker
	logger  *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker, logger *logger.Logger) *HealthController {
	return &HealthController{
		checker: checker,
		logger:  logger.WithComponent("health_controller"),
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), readinessTimeout)
	defer cancel()

	status := c.checker.GetHealthStatus(checkCtx)
	if !status.Healthy() {
		c.logger.Logger.Warn().Interface("checks", status.Checks).Msg("Readiness check failed")
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}

	ctx.JSON(http.StatusOK, status)
}
