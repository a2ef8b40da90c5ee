// Command macd is the acoustic MAC daemon: it loads a schedule from
// YAML, drives a mac.Manager, and wires the ambient observability
// stack (logging, audit, telemetry, status surface, dashboard) around
// it. Grounded on main.go's config-load -> UI-select -> goroutine
// fanout -> signal-wait shutdown sequencing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/goby3/mac/config"
	"github.com/goby3/mac/internal/audit"
	"github.com/goby3/mac/internal/dashboard"
	"github.com/goby3/mac/internal/statussurface"
	"github.com/goby3/mac/internal/telemetry"
	"github.com/goby3/mac/logging"
	"github.com/goby3/mac/mac"
	"github.com/goby3/mac/stats"
)

const pollInterval = 100 * time.Millisecond

func main() {
	configPath := flag.String("config", "macd.yaml", "path to the daemon's YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("macd: loading config: %v", err)
	}

	fanout, err := logging.Setup(cfg.Logging, os.Stdout)
	if err != nil {
		log.Fatalf("macd: setting up logging: %v", err)
	}
	defer fanout.Close()
	log.SetOutput(fanout)
	log.SetFlags(0)

	if cfg.Logging.Enabled && cfg.Audit.ArchiveCompressed {
		fanout.SetRotateHook(func(_ time.Time, prevPath, _ string) {
			if prevPath == "" {
				return
			}
			if err := audit.CompressAndRemove(prevPath); err != nil {
				log.Printf("macd: archiving rotated log %s: %v", prevPath, err)
			}
		})
	}

	var dash *dashboard.Dashboard
	tracker := stats.NewTracker()
	if cfg.Status.Dashboard && dashboard.IsTerminal() {
		dash = dashboard.New(true, tracker)
		dash.WaitReady()
		defer dash.Stop()
		fanout.SetConsoleSink(logWriterFunc(dash.AppendSystem), false)
	} else if cfg.Status.Dashboard {
		log.Printf("macd: dashboard requested but stdout is not a terminal, falling back to periodic log dump")
		plain := dashboard.NewPlainDumper(tracker, log.Default(), 30*time.Second)
		defer plain.Stop()
	}

	log.Printf("macd: starting")
	cfg.Print()

	sink := buildAuditSink(cfg, tracker, dash, fanout)

	transmit := make(chan mac.TransmitRequest, 16)
	ranging := make(chan mac.RangingRequest, 16)

	manager := mac.NewManager(transmit, ranging,
		mac.WithAuditSink(sink),
		mac.WithLogger(log.Default()),
	)

	macCfg, err := cfg.MAC.ToMACConfig()
	if err != nil {
		log.Fatalf("macd: translating MAC config: %v", err)
	}
	if err := manager.Startup(macCfg); err != nil {
		log.Fatalf("macd: starting MAC manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go drainTransmit(ctx, transmit)
	go drainRanging(ctx, ranging)
	go pollManager(ctx, manager)

	var surface *statussurface.Surface
	if cfg.Status.HTTPPort > 0 {
		surface = statussurface.New(statussurface.Options{
			Addr:           ":" + strconv.Itoa(cfg.Status.HTTPPort),
			MetricsEnabled: cfg.Status.MetricsEnabled,
			EventsEnabled:  cfg.Status.EventsEnabled,
		}, tracker, log.Default())
		surface.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	log.Println("macd: running, press Ctrl+C to stop")
	<-sigChan

	log.Println("macd: shutting down")
	cancel()
	manager.Shutdown()
	if surface != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := surface.Shutdown(shutdownCtx); err != nil {
			log.Printf("macd: status surface shutdown: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)
}

// buildAuditSink composes every configured mac.AuditSink implementation
// (durable audit store, MQTT telemetry, dashboard, tick trace) with the
// in-memory stats.Tracker behind one fanoutSink, since mac.Manager
// accepts only one sink.
func buildAuditSink(cfg *config.DaemonConfig, tracker *stats.Tracker, dash *dashboard.Dashboard, fanout *logging.Fanout) mac.AuditSink {
	sinks := []mac.AuditSink{tracker}

	if cfg.Logging.TickTrace {
		sinks = append(sinks, tickTraceSink{trace: logging.NewTickTrace(fanout)})
	}

	if cfg.Audit.Enabled {
		logger := log.Default()
		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		var auditSink audit.Sink
		if cfg.Audit.SQLitePath != "" {
			store, err := audit.OpenStore(cfg.Audit.SQLitePath, retention, logger)
			if err != nil {
				log.Printf("macd: opening audit store: %v", err)
			} else {
				auditSink.Store = store
			}
		}
		if cfg.Audit.PebblePath != "" {
			tickLog, err := audit.OpenTickLog(cfg.Audit.PebblePath, logger)
			if err != nil {
				log.Printf("macd: opening tick log: %v", err)
			} else {
				auditSink.TickLog = tickLog
			}
		}
		sinks = append(sinks, auditSink)
		if cfg.Audit.ArchiveCompressed && cfg.Audit.SQLitePath != "" {
			go runArchiveSweeper(filepath.Dir(cfg.Audit.SQLitePath), retention, logger)
		}
	}

	if cfg.Telemetry.Enabled {
		pub := telemetry.NewPublisher(cfg.Telemetry.Broker, cfg.Telemetry.Port, cfg.Telemetry.Topic,
			cfg.Telemetry.ClientID, cfg.Telemetry.QueueDepth, log.Default())
		if err := pub.Connect(); err != nil {
			log.Printf("macd: connecting telemetry publisher: %v", err)
		} else {
			sinks = append(sinks, pub)
		}
	}

	if dash != nil {
		sinks = append(sinks, dash)
	}

	if len(sinks) == 1 {
		return sinks[0]
	}
	return fanoutSink(sinks)
}

func runArchiveSweeper(dir string, retention time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-retention)
		if err := audit.ArchiveOldSegments(dir, cutoff, logger); err != nil {
			logger.Printf("macd: archive sweep: %v", err)
		}
	}
}

func pollManager(ctx context.Context, m *mac.Manager) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DoWork()
		}
	}
}

func drainTransmit(ctx context.Context, ch <-chan mac.TransmitRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-ch:
			log.Printf("macd: transmit src=%d dest=%d rate=%d", r.Src, r.Dest, r.Rate)
		}
	}
}

func drainRanging(ctx context.Context, ch <-chan mac.RangingRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-ch:
			log.Printf("macd: ranging src=%d dest=%d type=%d", r.Src, r.Dest, r.Type)
		}
	}
}

// fanoutSink broadcasts every mac.AuditSink callback to each member,
// since mac.Manager accepts exactly one sink but macd composes several.
type fanoutSink []mac.AuditSink

func (f fanoutSink) RecordDiscovery(src int, at time.Time) {
	for _, s := range f {
		s.RecordDiscovery(src, at)
	}
}

func (f fanoutSink) RecordEviction(src int, at time.Time) {
	for _, s := range f {
		s.RecordEviction(src, at)
	}
}

func (f fanoutSink) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	for _, s := range f {
		s.RecordCycleChange(cycleLength, slotCount, at)
	}
}

func (f fanoutSink) RecordTick(s mac.Slot, transmitted bool, at time.Time) {
	for _, sink := range f {
		sink.RecordTick(s, transmitted, at)
	}
}

// tickTraceSink adapts logging.TickTrace to mac.AuditSink: only
// RecordTick does anything, since discovery/eviction/cycle-change
// already log through m.logf at ordinary volume.
type tickTraceSink struct {
	trace *logging.TickTrace
}

func (s tickTraceSink) RecordDiscovery(int, time.Time)        {}
func (s tickTraceSink) RecordEviction(int, time.Time)         {}
func (s tickTraceSink) RecordCycleChange(int, int, time.Time) {}

func (s tickTraceSink) RecordTick(slot mac.Slot, transmitted bool, at time.Time) {
	s.trace.Record(slot.Src, slot.Dest, int(slot.Type), transmitted, at)
}

var _ mac.AuditSink = tickTraceSink{}

type logWriterFunc func(string)

func (f logWriterFunc) Write(p []byte) (int, error) {
	f(string(p))
	return len(p), nil
}
