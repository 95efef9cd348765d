// Package server builds the gin engine and runs the HTTP listener.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/celerix-dev/celerix-messages/internal/api"
	"github.com/celerix-dev/celerix-messages/internal/middleware"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
)

type RouterConfig struct {
	Handler     *api.Handler
	Log         *logger.Logger
	CORSOrigins []string
	// ServiceName enables otelgin spans when non-empty.
	ServiceName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	cfg.Handler.Register(r)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorEnvelope{Error: api.APIError{Message: "route not found", Code: "not_found"}})
	})
	return r
}
