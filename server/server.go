package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/internal/config"
	"github.com/fairhall/console/session"
	"github.com/fairhall/console/transport"
)

// Server is the console gateway's HTTP surface: the login and password pages,
// the role dashboards behind the route guard, and the authenticated /api/
// proxy to the platform.
type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	registry *session.Registry
	api      authapi.API
	validate *validator.Validate

	apiBaseURL string
	retryMode  transport.RetryMode

	clients     map[string]*transport.Client
	clientsLock sync.Mutex
}

func New(cfg config.Config, registry *session.Registry, api authapi.API) (*Server, error) {
	if registry == nil {
		return nil, pkgerrors.New("[server.New] nil session registry")
	}
	if api == nil {
		return nil, pkgerrors.New("[server.New] nil auth API")
	}

	retryMode := transport.RetryPerRequest
	if cfg.GetRetryMode() == config.RetryModeGlobal {
		retryMode = transport.RetryGlobalBudget
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		registry:   registry,
		api:        api,
		validate:   newValidator(),
		apiBaseURL: strings.TrimRight(cfg.GetAuthAPIURL(), "/"),
		retryMode:  retryMode,
		clients:    make(map[string]*transport.Client),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// clientFor returns the composed outbound client for a session, building it
// on first use. One interceptor chain per session, built once.
func (s *Server) clientFor(sessionID string, mgr *session.Manager) (*transport.Client, error) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if client, ok := s.clients[sessionID]; ok {
		return client, nil
	}
	client, err := transport.NewClient(mgr, transport.WithClientRetryMode(s.retryMode))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Server.clientFor] compose client")
	}
	s.clients[sessionID] = client
	return client, nil
}

func (s *Server) dropClient(sessionID string) {
	s.clientsLock.Lock()
	delete(s.clients, sessionID)
	s.clientsLock.Unlock()
}

// PruneSessions sweeps registry sessions that expired out of the backing
// store and releases their cached outbound clients. Meant to run on a timer.
func (s *Server) PruneSessions() int {
	removed := s.registry.Prune()
	for _, id := range removed {
		s.dropClient(id)
	}
	return len(removed)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
