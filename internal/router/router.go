package router

import (
	"github.com/gin-gonic/gin"

	"claimflow/internal/handler"
	"claimflow/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	corsOrigins []string,
	claimH *handler.ClaimHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))

	r.GET("/health", healthH.Health)

	r.POST("/process-claim/upload", claimH.Upload)

	v1 := r.Group("/api/v1")

	claims := v1.Group("/claims")
	claims.GET("/:claim_id/runs", claimH.ListClaimRuns)

	runs := v1.Group("/runs")
	runs.GET("", claimH.ListRuns)
	runs.GET("/export", claimH.Export)
	runs.GET("/:id", claimH.GetRun)

	return r
}
