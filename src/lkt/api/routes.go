package api

import "github.com/gin-gonic/gin"

// RegisterRoutes configures all API routes on the given router
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.handleHealth)

	v1 := router.Group("/v1", a.rateLimit("api", apiLimit))
	{
		v1.GET("/version", a.handleVersion)

		runs := v1.Group("/runs")
		{
			runs.GET("", a.handleListRuns)
			runs.GET("/:id", a.handleGetRun)
			runs.GET("/:id/results", a.handleListResults)
			runs.GET("/:id/logs", a.handleListLogs)
			runs.GET("/:id/logs/:name", a.rateLimit("logs", logLimit), a.handleGetLog)
		}
	}
}
