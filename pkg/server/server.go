package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ebobo/cellular_go/pkg/model"
)

// Cellular is the cellular resource API served over HTTP
type Cellular interface {
	Exists(id int) bool
	List() []model.Cellular
	Get(id int) (model.Cellular, error)
	Apply(id int, req model.ConfigRequest) (model.Config, error)
	Firmware(id int) (model.Firmware, error)
	SwitchFirmware(id int, fw model.FirmwareSwitch) error
}

// Server takes care of instantiating and running service and other dependencies.
type Server struct {
	httpListenAddr string
	httpStarted    *sync.WaitGroup
	httpStopped    *sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	cellular       Cellular
	gatherer       prometheus.Gatherer

	// one cellular request at a time, the controller is not safe for concurrent use
	mu sync.Mutex
}

// Config is the server configuration
type Config struct {
	HTTPListenAddr string
	Cellular       Cellular
	// Gatherer serves /metrics, prometheus.DefaultGatherer when nil
	Gatherer prometheus.Gatherer
}

func New(c Config) *Server {
	g := c.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		httpListenAddr: c.HTTPListenAddr,
		httpStarted:    &sync.WaitGroup{},
		httpStopped:    &sync.WaitGroup{},
		cellular:       c.Cellular,
		gatherer:       g,
	}
}

func (s *Server) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// Start the HTTP interface
	s.httpStarted.Add(1)
	s.httpStopped.Add(1)
	err := s.startHTTP()
	if err != nil {
		return err
	}
	s.httpStarted.Wait()

	return nil
}

// Handler returns the HTTP handler without starting a listener
func (s *Server) Handler() http.Handler {
	return s.handler()
}

func (s *Server) Shutdown() {
	log.Println("server shut down")
	if s.cancel != nil {
		s.cancel()
	}
	s.httpStopped.Wait()
}
