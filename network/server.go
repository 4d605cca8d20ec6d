package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/logging"
)

// maxMessageSize bounds the size of a /message request body.
const maxMessageSize = 1 << 12

const (
	msgReceived = "Message received"
	msgStarted  = "Algorithm started"
)

// Server serves the HTTP endpoints of a single node.
type Server struct {
	node     *consensus.Node
	logger   logging.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	mux      *http.ServeMux
	srv      *http.Server
}

// ServerOption sets optional parts of a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used by the server.
func WithServerLogger(logger logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics makes the server count messages in m and serve
// the metrics registered with registry on /metrics.
func WithMetrics(m *Metrics, registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.registry = registry
	}
}

// NewServer returns a server for the given node.
func NewServer(node *consensus.Node, opts ...ServerOption) *Server {
	s := &Server{
		node: node,
		mux:  http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New(fmt.Sprintf("server%d", node.ID()))
	}
	s.mux.HandleFunc("GET /status", s.status)
	s.mux.HandleFunc("GET /getState", s.getState)
	s.mux.HandleFunc("POST /message", s.message)
	s.mux.HandleFunc("GET /start", s.start)
	s.mux.HandleFunc("GET /stop", s.stop)
	if s.registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	s.srv = &http.Server{Handler: s.mux}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Debugf("listening on %s", l.Addr())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for active requests until ctx ends.
// Connections that are still open when ctx ends are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if err != nil {
		s.logger.Warnf("graceful shutdown failed: %v", err)
		return multierr.Append(err, s.srv.Close())
	}
	return nil
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if err := s.node.Status(); err != nil {
		writeText(w, http.StatusInternalServerError, "faulty")
		return
	}
	writeText(w, http.StatusOK, "live")
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.node.State())
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var msg benor.Message
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err == nil {
		err = json.Unmarshal(body, &msg)
	}
	if err == nil {
		err = s.node.HandleMessage(msg)
	}
	switch {
	case err == nil:
		s.count(func(m *Metrics) { m.MessagesReceived.WithLabelValues(msg.Phase.String()).Inc() })
		writeJSON(w, http.StatusOK, response{Message: msgReceived})
	case errors.Is(err, benor.ErrInactive):
		s.count(func(m *Metrics) { m.MessagesRejected.WithLabelValues("inactive").Inc() })
		writeText(w, http.StatusServiceUnavailable, "inactive")
	default:
		s.count(func(m *Metrics) { m.MessagesRejected.WithLabelValues("malformed").Inc() })
		s.logger.Debugf("rejecting message: %v", err)
		writeText(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if err := s.node.Start(r.Context()); err != nil {
		s.logger.Infof("failed to start: %v", err)
		writeText(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{Message: msgStarted})
}

func (s *Server) stop(w http.ResponseWriter, _ *http.Request) {
	s.node.Stop()
	writeText(w, http.StatusOK, "killed")
}

func (s *Server) count(f func(*Metrics)) {
	if s.metrics != nil {
		f(s.metrics)
	}
}

// response is the JSON body of acknowledgements.
type response struct {
	Message string `json:"message"`
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, text)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
