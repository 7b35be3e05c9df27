package bootstrap

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	app "github.com/campuskit/provisioner/internal/application/provisioning"
	"github.com/campuskit/provisioner/internal/infrastructure/repository"
	httpecho "github.com/campuskit/provisioner/internal/interfaces/http/echo"
)

func NewHTTPServer(db *gorm.DB) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))

	jobRepo := repository.NewBatchJobRepository(db)
	startBatch := app.NewStartBatch(jobRepo)
	getBatch := app.NewGetBatch(jobRepo)
	batchHandler := httpecho.NewBatchHandler(startBatch, getBatch)

	httpecho.RegisterRoutes(server, batchHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return server
}
