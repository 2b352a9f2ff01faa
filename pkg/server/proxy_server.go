package server

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/config"
	handlers "github.com/vigilguard/vigil/pkg/handlers/http"
	"github.com/vigilguard/vigil/pkg/infra/events"
	"github.com/vigilguard/vigil/pkg/infra/prometheus"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/server/router"
)

type (
	ProxyServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport *middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Hub                 *events.Hub
	}
	ProxyServer struct {
		*BaseServer
	}
)

// NewProxyServer builds the enforcement gateway listening on ProxyPort.
// Every non-system request is scored and either forwarded or rejected.
func NewProxyServer(di ProxyServerDI) *ProxyServer {
	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency:         di.Config.Metrics.EnableLatency,
		EnableUpstreamLatency: di.Config.Metrics.EnableUpstream,
		EnablePerPath:         di.Config.Metrics.EnablePerPath,
	})

	s := &ProxyServer{
		BaseServer: NewBaseServer(di.Config, di.Logger),
	}
	s.WithRouters(router.NewProxyRouter(di.MiddlewareTransport, di.HandlerTransport, di.Hub))
	s.setupMetricsEndpoint()
	return s
}

func (s *ProxyServer) Run() error {
	s.Logger.WithField("port", s.Config.Server.ProxyPort).Info("Starting proxy server")
	return s.Router.Listen(fmt.Sprintf(":%d", s.Config.Server.ProxyPort))
}

func (s *ProxyServer) Shutdown() error {
	return s.Router.Shutdown()
}
