// Package demo is the workload the pipeline ships: a page with a background
// color fixed at startup. Unknown paths answer 200 with a fallback string.
package demo

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	DefaultColor = "cornflowerblue"
	DefaultPort  = 80

	healthBody   = "Healthy!"
	fallbackBody = "Ooops, no such route"
)

var page = template.Must(template.New("page").Parse(`
<head>
  <title>EKS deployment</title>
</head>

<body style="display: flex; align-items: center; justify-content: center; background-color: {{.}};">
  <h1 style="color: white;">
    Hello from AWS EKS
  </h1>
</body>
`))

type Config struct {
	Port   int
	Color  string
	Logger zerolog.Logger
}

type Server struct {
	e      *echo.Echo
	config *Config
	page   []byte
}

func New(config *Config) (*Server, error) {
	if config.Color == "" {
		config.Color = DefaultColor
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, template.CSS(config.Color)); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			config.Logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Int64("latency_ms", v.Latency.Milliseconds()).
				Msg("handled request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{e: e, config: config, page: buf.Bytes()}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.e.Any("/", s.getOnly(func(c echo.Context) error {
		return c.HTMLBlob(http.StatusOK, s.page)
	}))
	s.e.Any("/color", s.color)
	s.e.Any("/color/*", s.color)
	s.e.Any("/health", s.getOnly(func(c echo.Context) error {
		return c.String(http.StatusOK, healthBody)
	}))
	s.e.Any("/*", fallback)
}

func (s *Server) color(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"color": s.config.Color})
}

// getOnly serves GET and HEAD with h; other methods get the fallback.
func (s *Server) getOnly(h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodGet, http.MethodHead:
			return h(c)
		}
		return fallback(c)
	}
}

func fallback(c echo.Context) error {
	return c.String(http.StatusOK, fallbackBody)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.config.Logger.Info().Str("addr", addr).Str("color", s.config.Color).Msg("server running")
	return s.e.Start(addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
