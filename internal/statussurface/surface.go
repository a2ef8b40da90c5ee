// Package statussurface exposes the MAC daemon's live state over HTTP:
// a JSON snapshot at /status, Prometheus metrics at /metrics, and a
// streaming feed of per-event JSON over a websocket at /events.
// Grounded on main.go's maybeStartDiagServer mux-and-background-
// ListenAndServe pattern.
package statussurface

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goby3/mac/mac"
	"github.com/goby3/mac/stats"
)

// Surface serves the daemon's status endpoints and relays every
// mac.AuditSink callback to connected websocket clients.
type Surface struct {
	tracker  *stats.Tracker
	registry *prometheus.Registry
	logger   *log.Logger
	hub      *hub
	server   *http.Server

	metricsEnabled bool
	eventsEnabled  bool
}

// Options configures which endpoints Surface serves.
type Options struct {
	Addr           string
	MetricsEnabled bool
	EventsEnabled  bool
}

func New(opts Options, tracker *stats.Tracker, logger *log.Logger) *Surface {
	if logger == nil {
		logger = log.Default()
	}
	registry := prometheus.NewRegistry()
	if tracker != nil {
		registry.MustRegister(tracker.Collector())
	}

	s := &Surface{
		tracker:        tracker,
		registry:       registry,
		logger:         logger,
		hub:            newHub(),
		metricsEnabled: opts.MetricsEnabled,
		eventsEnabled:  opts.EventsEnabled,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	if opts.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if opts.EventsEnabled {
		mux.HandleFunc("/events", s.handleEvents)
	}
	s.server = &http.Server{Addr: opts.Addr, Handler: mux}
	return s
}

// Start runs the HTTP server in the background. Errors after a clean
// Shutdown are not logged.
func (s *Surface) Start() {
	go func() {
		s.logger.Printf("status surface listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("status surface error: %v", err)
		}
	}()
}

// Shutdown stops the HTTP server and closes all websocket clients.
func (s *Surface) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.server.Shutdown(ctx)
}

func (s *Surface) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	snapshot := s.snapshot()
	payload, err := jsonAPI.Marshal(snapshot)
	if err != nil {
		http.Error(w, fmt.Sprintf("marshal status: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write(payload)
}

// statusSnapshot is the /status JSON shape.
type statusSnapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TransmitCount    uint64  `json:"transmit_count"`
	RangingTwoWay    uint64  `json:"ranging_two_way"`
	RangingRemusLBL  uint64  `json:"ranging_remus_lbl"`
	Discoveries      uint64  `json:"discoveries"`
	Evictions        uint64  `json:"evictions"`
	CycleChanges     uint64  `json:"cycle_changes"`
	TicksObserved    uint64  `json:"ticks_observed"`
	CycleLength      int64   `json:"cycle_length"`
	SlotCount        int64   `json:"slot_count"`
}

func (s *Surface) snapshot() statusSnapshot {
	if s.tracker == nil {
		return statusSnapshot{}
	}
	return statusSnapshot{
		UptimeSeconds:   s.tracker.GetUptime().Seconds(),
		TransmitCount:   s.tracker.TransmitCount(),
		RangingTwoWay:   s.tracker.RangingCount(mac.TwoWayPing),
		RangingRemusLBL: s.tracker.RangingCount(mac.RemusLBLRanging),
		Discoveries:     s.tracker.Discoveries(),
		Evictions:       s.tracker.Evictions(),
		CycleChanges:    s.tracker.CycleChanges(),
		TicksObserved:   s.tracker.TicksObserved(),
		CycleLength:     s.tracker.CurrentCycleLength(),
		SlotCount:       s.tracker.CurrentSlotCount(),
	}
}

// RecordDiscovery implements mac.AuditSink.
func (s *Surface) RecordDiscovery(src int, at time.Time) {
	s.hub.broadcast(wireEvent{Kind: "discovery", Src: src, At: at})
}

// RecordEviction implements mac.AuditSink.
func (s *Surface) RecordEviction(src int, at time.Time) {
	s.hub.broadcast(wireEvent{Kind: "eviction", Src: src, At: at})
}

// RecordCycleChange implements mac.AuditSink.
func (s *Surface) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	s.hub.broadcast(wireEvent{Kind: "cycle_change", CycleLength: cycleLength, SlotCount: slotCount, At: at})
}

// RecordTick implements mac.AuditSink.
func (s *Surface) RecordTick(slot mac.Slot, transmitted bool, at time.Time) {
	s.hub.broadcast(wireEvent{
		Kind:        "tick",
		Src:         slot.Src,
		Dest:        slot.Dest,
		SlotType:    int(slot.Type),
		Transmitted: transmitted,
		At:          at,
	})
}

var _ mac.AuditSink = (*Surface)(nil)
