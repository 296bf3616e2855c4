package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/metrics"
)

func RegisterMisc(injector *do.Injector, e *echo.Echo) {
	m := do.MustInvoke[*metrics.Metrics](injector)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}
