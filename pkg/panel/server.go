// Package panel serves the HTTP control surface of the lamp: a JSON API
// for the front end plus an HTML setup form over the stored
// configuration.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/drivers/hl2000"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/serialport"
)

// DeviceDescription identifies the served instrument.
type DeviceDescription struct {
	Name          string `json:"name"`
	Manufacturer  string `json:"manufacturer"`
	Model         string `json:"model"`
	DriverVersion string `json:"driver_version"`
	UniqueID      string `json:"uid"`
}

// Finder is the port scan behind the connection drop-down.
type Finder interface {
	Find(ctx context.Context) (map[string]serialport.Candidate, error)
}

// Server exposes one lamp over HTTP.
type Server struct {
	desc   DeviceDescription
	lamp   lamp.Lamp
	finder Finder
	store  *hl2000.Store
	tmpl   *template.Template
	logger log.FieldLogger
}

func NewServer(desc DeviceDescription, l lamp.Lamp, finder Finder, store *hl2000.Store, tmpl *template.Template, logger log.FieldLogger) *Server {
	return &Server{
		desc:   desc,
		lamp:   l,
		finder: finder,
		store:  store,
		tmpl:   tmpl,
		logger: logger.WithField("component", "panel"),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/device", s.handleDevice)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/candidates", s.handleCandidates)
	mux.HandleFunc("GET /api/faults", s.handleFaults)
	mux.HandleFunc("GET /api/motion", s.handleMotion)

	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /api/enable", s.handleEnable)
	mux.HandleFunc("POST /api/shutter", s.handleShutter)
	mux.HandleFunc("POST /api/home", s.handleHome)
	mux.HandleFunc("POST /api/calibrate", s.handleCalibrate)
	mux.HandleFunc("POST /api/velocity", s.handleVelocity)

	mux.HandleFunc("GET /setup", s.handleSetupForm)
	mux.HandleFunc("POST /setup", s.handleSetupSave)
	mux.Handle("GET /", http.RedirectHandler("/setup", http.StatusFound))
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	value := struct {
		DeviceDescription
		Connected bool   `json:"connected"`
		Port      string `json:"port,omitempty"`
	}{DeviceDescription: s.desc, Connected: s.lamp.Connected()}

	if p, ok := s.lamp.(interface{ Port() string }); ok {
		value.Port = p.Port()
	}
	handleResponse(w, value)
}

// handleStatus always answers with a snapshot; on a failed poll that is
// the all-unknown one, with the error noted alongside.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lamp.Snapshot()
	response := baseResponse{Value: snap}
	if err != nil {
		s.logger.WithError(err).Warn("status query failed")
		response.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	found, err := s.finder.Find(r.Context())
	if err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, found)
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	faults, err := s.lamp.Faults()
	if err != nil {
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, faults)
}

func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	motion, err := s.lamp.Motion()
	if err != nil {
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, motion)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port string `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Port == "" {
		handleError(w, http.StatusBadRequest, "port is required")
		return
	}
	if err := s.lamp.Connect(req.Port); err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, true)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.lamp.Disconnect(); err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, true)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		handleError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.lamp.SetEnabled(*req.Enabled); err != nil {
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, *req.Enabled)
}

func (s *Server) handleShutter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *int `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		handleError(w, http.StatusBadRequest, "position is required")
		return
	}
	if err := s.lamp.MoveShutter(r.Context(), *req.Position); err != nil {
		if errors.Is(err, lamp.ErrOutOfRange) {
			handleError(w, http.StatusBadRequest, err.Error())
			return
		}
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, *req.Position)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if err := s.lamp.SetHome(); err != nil {
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, true)
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if err := s.lamp.Calibrate(r.Context()); err != nil {
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, true)
}

func (s *Server) handleVelocity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Max *int `json:"max"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Max == nil {
		handleError(w, http.StatusBadRequest, "max is required")
		return
	}
	if err := s.lamp.SetMaxVelocity(*req.Max); err != nil {
		if errors.Is(err, lamp.ErrOutOfRange) {
			handleError(w, http.StatusBadRequest, err.Error())
			return
		}
		handleError(w, s.deviceErrorStatus(err), err.Error())
		return
	}
	handleResponse(w, *req.Max)
}

// deviceErrorStatus distinguishes "you need to connect first" from real
// device failures.
func (s *Server) deviceErrorStatus(err error) int {
	if errors.Is(err, lamp.ErrNotConnected) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
