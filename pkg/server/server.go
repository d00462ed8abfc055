// Package server exposes one driver session over the WebDriver HTTP
// protocol. Commands are served one at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/ecp"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Session is the driver surface served over HTTP. *roku.Driver implements it.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	FindElement(ctx context.Context, strategy, selector, contextID string) (string, error)
	FindElements(ctx context.Context, strategy, selector, contextID string) ([]string, error)
	Click(ctx context.Context, id string) error
	SetValue(ctx context.Context, id, text string) error
	ElementText(ctx context.Context, id string) (string, error)
	ElementAttribute(ctx context.Context, id, name string) (string, bool, error)
	ElementName(ctx context.Context, id string) (string, error)
	ElementRect(ctx context.Context, id string) (core.Bounds, error)
	ElementFocused(ctx context.Context, id string) (bool, error)

	Source(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Execute(ctx context.Context, script string, args []interface{}) (interface{}, error)
	Tap(ctx context.Context, x, y int) error
	WindowSize(ctx context.Context) (width, height int, err error)
	PressKey(ctx context.Context, key core.Key) error

	ActivateApp(ctx context.Context, appID, contentID, mediaType string) error
	InstallApp(ctx context.Context, archivePath string) error
	RemoveApp(ctx context.Context, appID string) error
	ActiveApp(ctx context.Context) (*ecp.App, error)
}

// Factory creates a session from the merged capabilities of a new-session
// request.
type Factory func(caps map[string]interface{}) (Session, error)

// Server holds at most one session.
type Server struct {
	factory Factory
	router  chi.Router

	// one command in flight at a time
	mu           sync.Mutex
	sessionID    string
	session      Session
	capabilities map[string]interface{}
}

// New creates a server.
func New(factory Factory) *Server {
	s := &Server{factory: factory}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled. A running session is
// ended on shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("WebDriver server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		if err := s.session.Stop(shutdownCtx); err != nil {
			logger.Warn("Failed to end session on shutdown: %v", err)
		}
		s.session = nil
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/status", s.handleStatus)
	r.Post("/session", s.handleNewSession)

	r.Route("/session/{sessionId}", func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleDeleteSession)

		r.Post("/element", s.handleFindElement)
		r.Post("/elements", s.handleFindElements)
		r.Post("/element/{elementId}/element", s.handleFindElement)
		r.Post("/element/{elementId}/elements", s.handleFindElements)
		r.Post("/element/{elementId}/click", s.handleClick)
		r.Post("/element/{elementId}/value", s.handleSetValue)
		r.Get("/element/{elementId}/text", s.handleText)
		r.Get("/element/{elementId}/attribute/{name}", s.handleAttribute)
		r.Get("/element/{elementId}/name", s.handleName)
		r.Get("/element/{elementId}/rect", s.handleRect)
		r.Get("/element/{elementId}/displayed", s.handleDisplayed)

		r.Get("/source", s.handleSource)
		r.Get("/screenshot", s.handleScreenshot)
		r.Post("/execute/sync", s.handleExecute)
		r.Post("/actions", s.handleActions)
		r.Get("/context", s.handleContext)
		r.Get("/window/rect", s.handleWindowRect)
		r.Post("/back", s.handleBack)

		r.Post("/appium/device/activate_app", s.handleActivateApp)
		r.Post("/appium/device/install_app", s.handleInstallApp)
		r.Post("/appium/device/remove_app", s.handleRemoveApp)
		r.Get("/appium/device/current_package", s.handleCurrentPackage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, core.ErrUnknownCommand.WithMessage("unknown command: "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, core.ErrUnknownCommand.WithMessage("unknown method for "+r.URL.Path))
	})
	return r
}

// withSession serializes session commands and rejects unknown session ids.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.session == nil || chi.URLParam(r, "sessionId") != s.sessionID {
			writeError(w, core.ErrNoSuchSession)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("%s %s %d [%v]", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.session != nil
	s.mu.Unlock()
	msg := "ready to create a session"
	if busy {
		msg = "a session is already running"
	}
	writeValue(w, map[string]interface{}{"ready": !busy, "message": msg})
}

type newSessionRequest struct {
	Capabilities struct {
		AlwaysMatch map[string]interface{}   `json:"alwaysMatch"`
		FirstMatch  []map[string]interface{} `json:"firstMatch"`
	} `json:"capabilities"`
	DesiredCapabilities map[string]interface{} `json:"desiredCapabilities"`
}

// mergedCapabilities combines alwaysMatch with the first firstMatch entry,
// falling back to legacy desiredCapabilities.
func (req newSessionRequest) mergedCapabilities() map[string]interface{} {
	caps := map[string]interface{}{}
	for k, v := range req.DesiredCapabilities {
		caps[k] = v
	}
	for k, v := range req.Capabilities.AlwaysMatch {
		caps[k] = v
	}
	if len(req.Capabilities.FirstMatch) > 0 {
		for k, v := range req.Capabilities.FirstMatch[0] {
			caps[k] = v
		}
	}
	return caps
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		writeError(w, core.ErrSessionNotCreated.WithMessage("a session is already running"))
		return
	}

	caps := req.mergedCapabilities()
	session, err := s.factory(caps)
	if err != nil {
		writeError(w, asSessionNotCreated(err))
		return
	}
	if err := session.Start(r.Context()); err != nil {
		writeError(w, asSessionNotCreated(err))
		return
	}

	s.sessionID = uuid.NewString()
	s.session = session
	s.capabilities = caps
	logger.Info("Created session %s", s.sessionID)
	writeValue(w, map[string]interface{}{"sessionId": s.sessionID, "capabilities": caps})
}

func asSessionNotCreated(err error) error {
	var ee *core.ExecutionError
	if errors.As(err, &ee) && ee.Code == core.CodeSessionNotCreated {
		return err
	}
	return core.ErrSessionNotCreated.WithMessage("a new session could not be created: " + err.Error()).WithCause(err)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.session.Stop(r.Context())
	logger.Info("Deleted session %s", s.sessionID)
	s.session = nil
	s.sessionID = ""
	s.capabilities = nil
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, nil)
}

func writeValue(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, err error) {
	code := core.CodeUnknownError
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		code = ee.Code
	}
	if code == core.CodeUnknownError {
		logger.Error("Command failed: %v", err)
	}
	writeJSON(w, core.HTTPStatus(code), map[string]interface{}{
		"value": map[string]interface{}{
			"error":      code,
			"message":    err.Error(),
			"stacktrace": "",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

// decode reads a JSON body. An empty body decodes as an empty object.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, core.ErrInvalidArgument.WithMessage("invalid request body: "+err.Error()))
		return false
	}
	return true
}
