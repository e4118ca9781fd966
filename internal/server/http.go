// Package server assembles the gin router and HTTP lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/conf"
	docservice "github.com/deepsearch-labs/deepquery/internal/document/service"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	searchservice "github.com/deepsearch-labs/deepquery/internal/search/service"
)

// HTTPServer hosts the REST and SSE surface.
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewHTTPServer builds the router and registers every service's routes.
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	searchSvc *searchservice.SearchService,
	documentSvc *docservice.DocumentService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	searchSvc.RegisterRoutes(api)
	documentSvc.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
			// No global write timeout: turn streams stay open for the
			// lifetime of the generation.
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Start blocks serving requests until Stop is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
