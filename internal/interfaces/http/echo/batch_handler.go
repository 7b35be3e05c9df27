package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/campuskit/provisioner/internal/application/provisioning"
)

type BatchHandler struct {
	startBatch app.StartBatch
	getBatch   app.GetBatch
}

type startBatchRequest struct {
	SourcePath string `json:"source_path"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func NewBatchHandler(startBatch app.StartBatch, getBatch app.GetBatch) *BatchHandler {
	return &BatchHandler{startBatch: startBatch, getBatch: getBatch}
}

func (h *BatchHandler) StartBatch(c echo.Context) error {
	var req startBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	out, err := h.startBatch.Execute(c.Request().Context(), app.StartBatchInput{
		SourcePath: req.SourcePath,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidBatchSource) {
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_source",
				Message: "source_path must be a .json file",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to enqueue batch job",
		}})
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *BatchHandler) GetBatch(c echo.Context) error {
	out, err := h.getBatch.Execute(c.Request().Context(), app.GetBatchInput{
		ID: c.Param("id"),
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidJobID) {
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_job_id",
				Message: "id must be a valid UUID",
			}})
		}
		if errors.Is(err, app.ErrBatchJobNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "not_found",
				Message: "batch job not found",
			}})
		}

		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to get batch job",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
