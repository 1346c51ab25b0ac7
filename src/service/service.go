package service

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Service serves the API as JSON commands posted to its root path.
type Service struct {
	bindAddress string
	api         *API
	logger      *logrus.Entry

	mux *http.ServeMux

	serverLock sync.Mutex
	server     *http.Server
}

// NewService ...
func NewService(bindAddress string, api *API, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		api:         api,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/", s.makeHandler(s.handleCommand))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler of the service, for use in another server.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve listens on the bind address and serves until Shutdown. This is a
// blocking call.
func (s *Service) Serve() error {
	l, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return err
	}
	return s.ServeListener(l)
}

// ServeListener serves on l until Shutdown.
func (s *Service) ServeListener(l net.Listener) error {
	s.logger.WithField("bind_address", l.Addr().String()).Debug("Serving API")

	server := &http.Server{Handler: s.mux}
	s.serverLock.Lock()
	s.server = server
	s.serverLock.Unlock()

	err := server.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server, interrupting running attachments.
func (s *Service) Shutdown(ctx context.Context) error {
	s.api.interruptAttachingToTangle(ctx, nil)

	s.serverLock.Lock()
	server := s.server
	s.serverLock.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (s *Service) handleCommand(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		s.respond(w, http.StatusMethodNotAllowed, &ErrorResponse{Error: "POST a JSON command"}, start)
		return
	}

	var req Request
	jh := new(codec.JsonHandle)
	if err := codec.NewDecoder(r.Body, jh).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, &ErrorResponse{Error: "Invalid JSON: " + err.Error()}, start)
		return
	}

	res, err := s.api.Process(r.Context(), &req)
	switch {
	case err == nil:
		s.respond(w, http.StatusOK, res, start)
	case IsRequestError(err):
		s.respond(w, http.StatusBadRequest, &ErrorResponse{Error: err.Error()}, start)
	default:
		s.logger.WithError(err).WithField("command", req.Command).Error("API exception")
		s.respond(w, http.StatusInternalServerError, &ExceptionResponse{Exception: err.Error()}, start)
	}
}

func (s *Service) respond(w http.ResponseWriter, status int, res Response, start time.Time) {
	res.setDuration(time.Since(start).Nanoseconds() / int64(time.Millisecond))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	jh := new(codec.JsonHandle)
	if err := codec.NewEncoder(w, jh).Encode(res); err != nil {
		s.logger.WithError(err).Error("Writing response")
	}
}
