package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, batchHandler *BatchHandler) {
	server.POST("/api/v1/provisioning/batches", batchHandler.StartBatch)
	server.GET("/api/v1/provisioning/batches/:id", batchHandler.GetBatch)
}
