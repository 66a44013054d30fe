package serialport

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
)

// ProbeTimeout is the per-line read budget used while probing candidate
// ports. Unresponsive ports are abandoned quickly so a full scan stays
// under a second even with several devices attached.
const ProbeTimeout = 50 * time.Millisecond

// Candidate describes a port that answered the identification probe.
type Candidate struct {
	Port    string `json:"port"`
	Product string `json:"product,omitempty"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Reply   string `json:"reply"`
}

// prober is the part of Port the finder needs from a dialed candidate.
type prober interface {
	Query(cmd string) (string, error)
	Close() error
}

// Finder scans the serial ports of the host and probes each one with an
// identification query, keeping the ports whose reply carries the
// expected marker. Bluetooth ports are skipped outright: probing them
// can block for seconds and the lamp never enumerates as one.
type Finder struct {
	cfg    Config
	cmd    string
	marker string
	logger log.FieldLogger

	list func() ([]*enumerator.PortDetails, error)
	dial func(name string, cfg Config) (prober, error)
}

// NewFinder returns a Finder probing with cmd and accepting replies that
// contain marker. The serial mode comes from cfg; the read budget is
// tightened to ProbeTimeout.
func NewFinder(cfg Config, cmd, marker string, logger log.FieldLogger) *Finder {
	probe := cfg.withDefaults()
	probe.ReadTimeout = ProbeTimeout
	probe.QueryTimeout = 5 * ProbeTimeout
	return &Finder{
		cfg:    probe,
		cmd:    cmd,
		marker: marker,
		logger: logger.WithField("component", "finder"),
		list:   enumerator.GetDetailedPortsList,
		dial: func(name string, cfg Config) (prober, error) {
			return Open(name, cfg)
		},
	}
}

// Find probes every serial port on the host and returns the ones that
// answered like the instrument, keyed by port name. A port that fails to
// open, stays silent or replies with junk is skipped, not an error; only
// a failing port listing aborts the scan.
func (f *Finder) Find(ctx context.Context) (map[string]Candidate, error) {
	ports, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	found := make(map[string]Candidate)
	for _, details := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := f.logger.WithField("port", details.Name)
		if isBluetooth(details) {
			entry.Debug("skipping bluetooth port")
			continue
		}
		reply, err := f.probe(details.Name)
		if err != nil {
			entry.WithError(err).Debug("probe failed")
			continue
		}
		if !strings.Contains(reply, f.marker) {
			entry.WithField("reply", reply).Debug("not the instrument")
			continue
		}
		cand := Candidate{Port: details.Name, Reply: reply}
		if details.IsUSB {
			cand.Product = details.Product
			cand.VID = details.VID
			cand.PID = details.PID
		}
		entry.WithField("reply", reply).Info("found candidate device")
		found[details.Name] = cand
	}
	return found, nil
}

func (f *Finder) probe(name string) (string, error) {
	conn, err := f.dial(name, f.cfg)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	reply, err := conn.Query(f.cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func isBluetooth(details *enumerator.PortDetails) bool {
	id := strings.ToLower(details.Name + " " + details.Product)
	return strings.Contains(id, "bluetooth")
}
