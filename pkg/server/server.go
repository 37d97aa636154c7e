package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/logging"
	"github.com/ST2Projects/vision-runner/pkg/middleware"
	"github.com/ST2Projects/vision-runner/pkg/modelinfo"
	"github.com/ST2Projects/vision-runner/pkg/vision"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadBytes is the request body limit applied to the upload
// endpoints when the configuration does not set one.
const DefaultMaxUploadBytes = 25 << 20

// Config configures a Server.
type Config struct {
	// AllowedOrigins is the list of origins allowed to make cross-origin
	// requests against the server.
	AllowedOrigins []string
	// MaxUploadBytes caps the size of request bodies on the upload
	// endpoints. Zero or negative selects DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

// Server serves the image analysis API and the upload form.
type Server struct {
	// log is the associated logger.
	log logging.Logger
	// analyzer runs the analysis operations against the bound engine.
	analyzer *vision.Analyzer
	// info is the model card resolved at startup.
	info *modelinfo.Info
	// maxUploadBytes caps request bodies on the upload endpoints.
	maxUploadBytes int64
	// router is the HTTP request router.
	router *http.ServeMux
	// httpHandler is the HTTP request handler, which wraps router with
	// the server-level middleware.
	httpHandler http.Handler
	// lock is used to synchronize access to the server's router.
	lock sync.RWMutex
}

// New creates a new server around the given analyzer and model card.
func New(log logging.Logger, analyzer *vision.Analyzer, info *modelinfo.Info, config Config) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if info == nil {
		info = modelinfo.Fallback("unknown")
	}

	// Create the server.
	s := &Server{
		log:            log,
		analyzer:       analyzer,
		info:           info,
		maxUploadBytes: config.MaxUploadBytes,
		router:         http.NewServeMux(),
	}

	// Register routes.
	s.router.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	for route, handler := range s.routeHandlers() {
		s.router.HandleFunc(route, handler)
	}

	s.RebuildRoutes(config.AllowedOrigins)

	// Server successfully initialized.
	return s
}

func (s *Server) routeHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /{$}":                                 s.handleIndex,
		"POST " + inference.APIPrefix + "/analyze": s.handleAnalyze,
		"POST " + inference.APIPrefix + "/tags":    s.handleTags,
		"GET " + inference.APIPrefix + "/status":   s.handleStatus,
		"GET /livez":                               s.handleLivez,
		"GET /readyz":                              s.handleReadyz,
		"GET /metrics":                             promhttp.Handler().ServeHTTP,
	}
}

// RebuildRoutes rebuilds the middleware chain around the router. It must be
// called after the allowed origins change.
func (s *Server) RebuildRoutes(allowedOrigins []string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	// Update handlers that depend on the allowed origins.
	var handler http.Handler = s.router
	handler = middleware.SecurityHeadersMiddleware(handler)
	handler = middleware.CorsMiddleware(allowedOrigins, handler)
	handler = &middleware.LegacyAliasHandler{Handler: handler}
	s.httpHandler = middleware.RequestLoggerMiddleware(s.log, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	s.httpHandler.ServeHTTP(w, r)
}

// StatusResponse is the body returned by GET <api-prefix>/status.
type StatusResponse struct {
	Engine string          `json:"engine"`
	Status string          `json:"status"`
	Model  *modelinfo.Info `json:"model,omitempty"`
}

// handleStatus handles GET <api-prefix>/status requests.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	engine := s.analyzer.Engine()
	response := StatusResponse{
		Engine: engine.Name(),
		Status: engine.Status(),
		Model:  s.info,
	}

	// Write the response.
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Warnln("Error while encoding status response:", err)
	}
}

// handleLivez handles GET /livez requests.
func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadyz handles GET /readyz requests. The server is only constructed
// after an engine has been probed and bound, so readiness follows liveness.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
