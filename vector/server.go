package vector

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/scholaris/core/common"
)

// NewHTTPServer exposes Service over HTTP for cmd/vectorsvc, mirroring the
// teacher's pattern of a thin Echo wrapper around one concrete service
// (see cli's handler registration) rather than a generic RPC framework.
// Routes are under /internal since this surface is reached only by the
// gateway and worker, never directly by an external client.
func NewHTTPServer(svc *Service, debug bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = debug

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.HTTPErrorHandler = common.HTTPErrorHandler(debug)

	e.POST("/internal/search", func(c echo.Context) error {
		var req searchWireRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrValidation("malformed search request")
		}
		result, err := svc.Search(c.Request().Context(), req.UserID, req.Query, req.MaxResults, req.Filters)
		if err != nil {
			return common.ErrValidation(err.Error())
		}
		return c.JSON(http.StatusOK, result)
	})

	e.POST("/internal/index", func(c echo.Context) error {
		var req indexWireRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrValidation("malformed index request")
		}
		count, err := svc.IndexDocument(c.Request().Context(), req.DocumentID, req.Title, req.Sections)
		if err != nil {
			return common.ErrInternal(err.Error())
		}
		return c.JSON(http.StatusOK, indexWireResponse{ChunkCount: count})
	})

	e.POST("/internal/delete-chunks", func(c echo.Context) error {
		var req deleteChunksWireRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrValidation("malformed delete-chunks request")
		}
		if err := svc.DeleteChunks(c.Request().Context(), req.DocumentID); err != nil {
			return common.ErrInternal(err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.GET("/internal/health", func(c echo.Context) error {
		fact, err := svc.Health(c.Request().Context())
		if err != nil {
			return common.ErrInternal(err.Error())
		}
		return c.JSON(http.StatusOK, fact)
	})

	return e
}
