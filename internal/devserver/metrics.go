package devserver

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	logins        atomic.Uint64
	registrations atomic.Uint64
	uploads       atomic.Uint64
	messages      atomic.Uint64
	activeConns   atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncLogin()        { m.logins.Add(1) }
func (m *Metrics) IncRegistration() { m.registrations.Add(1) }
func (m *Metrics) IncUpload()       { m.uploads.Add(1) }
func (m *Metrics) IncMessage()      { m.messages.Add(1) }
func (m *Metrics) IncConn()         { m.activeConns.Add(1) }
func (m *Metrics) DecConn()         { m.activeConns.Add(-1) }

// Snapshot returns the counters keyed as they are served.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"logins_total":        m.logins.Load(),
		"registrations_total": m.registrations.Load(),
		"uploads_total":       m.uploads.Load(),
		"messages_total":      m.messages.Load(),
		"active_connections":  m.activeConns.Load(),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
