package application

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/gateway"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/usecase"
	"github.com/veedubyou/stem-splitter/src/shared/config"
)

const ServiceName = "stem-splitter"

type HTTPMethod string

const (
	GET  HTTPMethod = "GET"
	POST HTTPMethod = "POST"
)

type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type App struct {
	echo     *echo.Echo
	port     string
	closeFns []func() error
}

func NewApp(cfg *config.Config) (App, error) {
	components, err := NewComponents(cfg)
	if err != nil {
		return App{}, errors.Wrap(err, "Failed to build separation components")
	}

	e := NewEcho(cfg, components.Separator)

	return App{
		echo:     e,
		port:     cfg.Server.Port,
		closeFns: components.closeFns,
	}, nil
}

// NewEcho builds the HTTP boundary around any separator.
func NewEcho(cfg *config.Config, separator jobusecase.Separator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	if cfg.Server.LogRequests {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	corsMiddleware := makeCorsMiddleware(cfg)

	handleRoute := func(method HTTPMethod, path string, handlerFunc echo.HandlerFunc) {
		params := func() (string, echo.HandlerFunc, echo.MiddlewareFunc) {
			return path, handlerFunc, corsMiddleware
		}

		e.OPTIONS(params())

		switch method {
		case GET:
			e.GET(params())
		case POST:
			e.POST(params())
		default:
			panic("unhandled http method!")
		}
	}

	jobGateway := makeJobGateway(separator)

	// health check
	healthCheck := func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthStatus{
			Status:  "ok",
			Service: ServiceName,
		})
	}
	handleRoute(GET, "/", healthCheck)
	handleRoute(GET, "/health-check", healthCheck)

	// separation routes
	handleRoute(POST, "/separate", jobGateway.Separate)

	// produced stems
	e.GET("/downloads/*", serveDownloads(cfg.Paths.ProcessedRoot))

	return e
}

func (a *App) Start() error {
	err := a.echo.Start(a.port)
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "Couldn't start echo server")
	}

	return nil
}

func (a *App) Stop() error {
	err := a.echo.Close()
	if err != nil {
		return errors.Wrap(err, "Failed to stop echo server")
	}

	return a.release()
}

// Shutdown lets in-flight separations finish until ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.echo.Shutdown(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to shut down echo server")
	}

	return a.release()
}

func (a *App) release() error {
	var err error
	for _, closeFn := range a.closeFns {
		err = errors.CombineErrors(err, closeFn())
	}

	if err != nil {
		return errors.Wrap(err, "Failed to release app resources")
	}

	return nil
}

func makeJobGateway(separator jobusecase.Separator) jobgateway.Gateway {
	usecase := jobusecase.NewUsecase(separator)
	return jobgateway.NewGateway(usecase)
}

func makeCorsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	})
}
