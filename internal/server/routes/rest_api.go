package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/usecase"
)

const defaultListLimit = 50

func RegisterRestAPI(injector *do.Injector, e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	g.GET("/runs", func(c echo.Context) error {
		limit := defaultListLimit
		if s := c.QueryParam("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return c.NoContent(http.StatusBadRequest)
			}
			limit = n
		}

		usecase, err := do.Invoke[usecase.ListRunsUsecase](injector)
		if err != nil {
			return unavailable(c, err)
		}
		runs, err := usecase.Execute(c.Request().Context(), limit)
		if err != nil {
			return c.NoContent(http.StatusInternalServerError)
		}

		type response struct {
			Runs []*entity.Run `json:"runs"`
		}
		result := &response{Runs: make([]*entity.Run, len(runs))}
		copy(result.Runs, runs)

		return c.JSON(http.StatusOK, result)
	})
	g.GET("/runs/:id", func(c echo.Context) error {
		usecase, err := do.Invoke[usecase.GetRunUsecase](injector)
		if err != nil {
			return unavailable(c, err)
		}
		run, err := usecase.Execute(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, run)
	})
	g.POST("/runs", func(c echo.Context) error {
		type request struct {
			Ref string `json:"ref"`
		}
		var req request
		if err := c.Bind(&req); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		usecase, err := do.Invoke[usecase.StartPipelineUsecase](injector)
		if err != nil {
			return unavailable(c, err)
		}
		run, err := usecase.Execute(c.Request().Context(), entity.Trigger{Source: "api", Ref: req.Ref})
		if err != nil {
			if errors.Is(err, entity.ErrRunInProgress) {
				return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, run)
	})
	g.GET("/status", func(c echo.Context) error {
		usecase, err := do.Invoke[usecase.PipelineStatusUsecase](injector)
		if err != nil {
			return unavailable(c, err)
		}
		status, err := usecase.Execute(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, status)
	})
}

// unavailable reports a service the injector could not build, typically an
// invalid configuration.
func unavailable(c echo.Context, err error) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
}
