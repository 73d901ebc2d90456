package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ebobo/cellular_go/pkg/cellular"
	"github.com/ebobo/cellular_go/pkg/model"
)

const maxBodySize = 64 << 10

func (s *Server) handler() http.Handler {
	m := mux.NewRouter()

	// Add CORS
	cors := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS", "PUT"},
		MaxAge:           31,
		Debug:            false,
	})

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Hello, Welcome to the Cellular Server !")
	}).Methods("GET")

	m.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	m.HandleFunc("/network/cellulars", s.ListCellulars).Methods("GET")
	m.HandleFunc("/network/cellulars/{id}", s.GetCellular).Methods("GET")
	m.HandleFunc("/network/cellulars/{id}", s.UpdateCellular).Methods("PUT")
	m.HandleFunc("/network/cellulars/{id}/firmware", s.GetFirmware).Methods("GET")
	m.HandleFunc("/network/cellulars/{id}/firmware", s.SetFirmware).Methods("PUT")

	return handlers.ProxyHeaders(cors.Handler(m))
}

func (s *Server) startHTTP() error {
	httpServer := &http.Server{
		Addr:              s.httpListenAddr,
		Handler:           s.handler(),
		ReadTimeout:       (10 * time.Second),
		ReadHeaderTimeout: (8 * time.Second),
		WriteTimeout:      (45 * time.Second),
	}

	// Set up shutdown handler
	go func() {
		<-s.ctx.Done()
		err := httpServer.Shutdown(context.Background())
		if err != nil {
			log.Printf("error shutting down HTTP interface '%s': %v", s.httpListenAddr, err)
		}
	}()

	// Start HTTP server
	go func() {
		log.Printf("starting HTTP interface '%s'", s.httpListenAddr)

		// This isn't entirely true and really represents a race condition, but
		// doing this properly is a pain in the neck.
		s.httpStarted.Done()

		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}

		log.Printf("HTTP interface '%s' down %v", s.httpListenAddr, err)
		s.httpStopped.Done()
	}()

	return nil
}

func (s *Server) ListCellulars(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := s.cellular.List()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetCellular(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	c, err := s.cellular.Get(id)
	s.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) UpdateCellular(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	if !s.exists(id) {
		writeError(w, cellular.ErrNotFound)
		return
	}

	var req model.ConfigRequest
	if err := decode(w, r, &req); err != nil {
		log.Printf("failed to decode cellular %d update: %v", id, err)
		writeError(w, err)
		return
	}

	s.mu.Lock()
	cfg, err := s.cellular.Apply(id, req)
	s.mu.Unlock()

	if err != nil {
		log.Printf("failed to update cellular %d: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) GetFirmware(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	fw, err := s.cellular.Firmware(id)
	s.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fw)
}

func (s *Server) SetFirmware(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	if !s.exists(id) {
		writeError(w, cellular.ErrNotFound)
		return
	}

	var fw model.FirmwareSwitch
	if err := decode(w, r, &fw); err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	err := s.cellular.SwitchFirmware(id, fw)
	s.mu.Unlock()

	if err != nil {
		log.Printf("failed to switch firmware of cellular %d: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, fw)
}

// exists is checked before a body is decoded so that an unknown resource is
// reported as not found whatever the body holds
func (s *Server) exists(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cellular.Exists(id)
}

// resourceID parses the {id} path variable. Anything that is not a number
// cannot name a resource.
func resourceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, cellular.ErrNotFound)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", cellular.ErrInvalid, err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cellular.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cellular.ErrInvalid):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
