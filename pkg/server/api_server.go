package server

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/config"
	handlers "github.com/vigilguard/vigil/pkg/handlers/http"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/server/router"
)

type (
	APIServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport *middleware.Transport
		HandlerTransport    handlers.HandlerTransport
	}
	APIServer struct {
		*BaseServer
	}
)

// NewAPIServer builds the management API listening on APIPort.
func NewAPIServer(di APIServerDI) *APIServer {
	s := &APIServer{
		BaseServer: NewBaseServer(di.Config, di.Logger),
	}
	s.setupHealthCheck()
	s.WithRouters(router.NewAPIRouter(di.MiddlewareTransport, di.HandlerTransport))
	return s
}

func (s *APIServer) Run() error {
	s.Logger.WithField("port", s.Config.Server.APIPort).Info("Starting api server")
	return s.Router.Listen(fmt.Sprintf(":%d", s.Config.Server.APIPort))
}

func (s *APIServer) Shutdown() error {
	return s.Router.Shutdown()
}
