// ABOUTME: Engine subsystem shared by all engines in the process
// ABOUTME: Owns the HTTP client and WebSocket dialer used to open datasources
package engine

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// System is the engine subsystem: initialized once, uninitialized once
type System struct {
	log    logrus.FieldLogger
	client *http.Client
	dialer *websocket.Dialer

	mu     sync.Mutex
	closed bool
}

// NewSystem initializes the engine subsystem
func NewSystem(log logrus.FieldLogger) *System {
	if log == nil {
		log = logrus.StandardLogger()
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}

	return &System{
		log:    log,
		client: &http.Client{Transport: transport},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewEngine creates an engine that opens datasources through this subsystem
func (s *System) NewEngine(cb Callbacks) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrUninitialized
	}
	return New(cb, Options{Logger: s.log, Open: s.Open})
}

// Uninit releases subsystem resources. Safe to call more than once.
func (s *System) Uninit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	s.log.Debug("Engine subsystem uninitialized")
	return nil
}
