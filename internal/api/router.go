package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/bossfetch/internal/api/controllers"
	"github.com/datallboy/bossfetch/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	jobs := &controllers.JobsController{App: app}

	g := e.Group("/api")
	g.POST("/jobs", jobs.Submit)
	g.GET("/jobs", jobs.List)
	g.GET("/jobs/:id", jobs.Get)
	g.DELETE("/jobs/:id", jobs.Cancel)
	g.GET("/progress", jobs.Progress)
}
