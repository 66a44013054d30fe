package panel

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/drivers/hl2000"
)

// Line terminators travel through the form escaped ("\r\n" as text) so
// they stay visible and editable.
var (
	escapeTerm   = strings.NewReplacer("\r", `\r`, "\n", `\n`)
	unescapeTerm = strings.NewReplacer(`\r`, "\r", `\n`, "\n")
)

type setupFormData struct {
	BaudRate           int
	DataBits           int
	Parity             string
	StopBits           int
	WriteTerminator    string
	ReadTerminator     string
	ReadTimeout        string
	QueryTimeout       string
	SettleDelay        string
	ClosedPosition     int
	MaxPosition        int
	MaxVelocity        int
	CalibrateOnConnect bool

	Success bool
	Error   string
}

func formDataFromConfig(cfg hl2000.Config) setupFormData {
	return setupFormData{
		BaudRate:           cfg.Serial.BaudRate,
		DataBits:           cfg.Serial.DataBits,
		Parity:             cfg.Serial.Parity,
		StopBits:           cfg.Serial.StopBits,
		WriteTerminator:    escapeTerm.Replace(cfg.Serial.WriteTerminator),
		ReadTerminator:     escapeTerm.Replace(cfg.Serial.ReadTerminator),
		ReadTimeout:        cfg.Serial.ReadTimeout.String(),
		QueryTimeout:       cfg.Serial.QueryTimeout.String(),
		SettleDelay:        cfg.SettleDelay.String(),
		ClosedPosition:     cfg.ClosedPosition,
		MaxPosition:        cfg.MaxPosition,
		MaxVelocity:        cfg.MaxVelocity,
		CalibrateOnConnect: cfg.CalibrateOnConnect,
	}
}

// handleSetupForm returns a user interface for configuring the lamp.
func (s *Server) handleSetupForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderSetupForm(w, cfg, false, "")
}

func (s *Server) handleSetupSave(w http.ResponseWriter, r *http.Request) {
	cfg, err := parseSetupForm(r)
	if err != nil {
		s.renderSetupForm(w, cfg, false, err.Error())
		return
	}

	s.logger.Infof("Saving lamp config: %+v", cfg)
	if err := s.store.SetConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderSetupForm(w, cfg, true, "")
}

func (s *Server) renderSetupForm(w http.ResponseWriter, cfg hl2000.Config, success bool, errMsg string) {
	data := formDataFromConfig(cfg)
	data.Success = success
	data.Error = errMsg

	if err := s.tmpl.ExecuteTemplate(w, "lamp_setup.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseSetupForm(r *http.Request) (hl2000.Config, error) {
	cfg := hl2000.DefaultConfig()
	if err := r.ParseForm(); err != nil {
		return cfg, fmt.Errorf("error parsing form: %v", err)
	}

	var err error
	if cfg.Serial.BaudRate, err = formInt(r, "baud_rate"); err != nil {
		return cfg, err
	}
	if cfg.Serial.DataBits, err = formInt(r, "data_bits"); err != nil {
		return cfg, err
	}
	cfg.Serial.Parity = strings.ToUpper(strings.TrimSpace(r.FormValue("parity")))
	switch cfg.Serial.Parity {
	case "N", "E", "O":
	default:
		return cfg, fmt.Errorf("parity: %q is not one of N, E, O", cfg.Serial.Parity)
	}
	if cfg.Serial.StopBits, err = formInt(r, "stop_bits"); err != nil {
		return cfg, err
	}
	cfg.Serial.WriteTerminator = unescapeTerm.Replace(r.FormValue("write_terminator"))
	cfg.Serial.ReadTerminator = unescapeTerm.Replace(r.FormValue("read_terminator"))
	if cfg.Serial.ReadTimeout, err = formDuration(r, "read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.Serial.QueryTimeout, err = formDuration(r, "query_timeout"); err != nil {
		return cfg, err
	}
	if cfg.SettleDelay, err = formDuration(r, "settle_delay"); err != nil {
		return cfg, err
	}
	if cfg.ClosedPosition, err = formInt(r, "closed_position"); err != nil {
		return cfg, err
	}
	if cfg.MaxPosition, err = formInt(r, "max_position"); err != nil {
		return cfg, err
	}
	if cfg.MaxVelocity, err = formInt(r, "max_velocity"); err != nil {
		return cfg, err
	}
	cfg.CalibrateOnConnect = r.FormValue("calibrate_on_connect") != ""

	return cfg, nil
}

func formInt(r *http.Request, field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(field)))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, r.FormValue(field))
	}
	return v, nil
}

func formDuration(r *http.Request, field string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(r.FormValue(field)))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", field, r.FormValue(field))
	}
	return d, nil
}
