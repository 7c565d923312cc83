// Package api exposes an optional local HTTP endpoint for operators:
// server status, version, connection QR payload, and Prometheus metrics.
// It is never required by the mobile client, which speaks only the
// binary TCP protocol.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/shycats/vcam/internal/logging"
	"github.com/shycats/vcam/internal/metrics"
	"github.com/shycats/vcam/internal/server"
	"github.com/shycats/vcam/internal/version"
)

// Server wraps the huma API and its HTTP listener.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	camServer  *server.Server
	logger     *slog.Logger
}

// StatusData is the /status response body.
type StatusData struct {
	Serving       bool   `json:"serving" doc:"Listener is bound and accepting"`
	Connected     bool   `json:"connected" doc:"A client session is active"`
	Streaming     bool   `json:"streaming" doc:"The encoder pipeline is running"`
	CurrentCamera string `json:"current_camera,omitempty" doc:"Camera selected by the client"`
	Port          int    `json:"port" doc:"TCP control port"`
	QR            string `json:"qr" doc:"Connection QR payload"`
}

// StatusResponse wraps StatusData for huma.
type StatusResponse struct {
	Body StatusData
}

// VersionResponse wraps version info for huma.
type VersionResponse struct {
	Body version.Info
}

// NewServer creates the status API over a camera server.
func NewServer(camServer *server.Server) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("vcam status API", version.Version)
	config.Info.Description = "Status and metrics for the virtual-camera control server"
	config.Servers = []*huma.Server{}

	s := &Server{
		api:       humago.New(mux, config),
		mux:       mux,
		camServer: camServer,
		logger:    logging.GetLogger("api"),
	}

	mux.Handle("GET /metrics", metrics.Handler())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Status",
		Description: "Current serving, session, and streaming state",
		Tags:        []string{"status"},
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		return &StatusResponse{
			Body: StatusData{
				Serving:       s.camServer.Serving(),
				Connected:     s.camServer.Connected(),
				Streaming:     s.camServer.Streaming(),
				CurrentCamera: s.camServer.CurrentCamera(),
				Port:          s.camServer.Port(),
				QR:            s.camServer.QRString(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/version",
		Summary:     "Version",
		Description: "Build and version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		return &VersionResponse{Body: version.Get()}, nil
	})
}

// Start serves on addr until Stop or listener failure.
func (s *Server) Start(addr string) error {
	s.logger.Info("status API listening", "addr", addr)
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	return s.httpServer.ListenAndServe()
}

// Stop closes the HTTP server without waiting for open connections.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
