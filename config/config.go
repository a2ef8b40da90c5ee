// Package config loads and validates the macd daemon's YAML
// configuration: the MAC schedule itself plus the ambient daemon
// settings (logging, audit, telemetry, status surface).
package config

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/goby3/mac/logging"
	"github.com/goby3/mac/mac"
)

// DaemonConfig is the complete macd configuration surface.
type DaemonConfig struct {
	MAC       MACConfig       `yaml:"mac"`
	Logging   logging.Config  `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Status    StatusConfig    `yaml:"status"`
}

// MACConfig is the YAML-facing mirror of mac.Config: mac.Mode is an
// int enum internally, but a deployed config names it by string.
type MACConfig struct {
	Type         string      `yaml:"type"`
	ModemID      int         `yaml:"modem_id"`
	SlotSeconds  int         `yaml:"slot_seconds"`
	Rate         int         `yaml:"rate"`
	ExpireCycles int         `yaml:"expire_cycles"`
	Cycle        []SlotEntry `yaml:"cycle"`
}

// SlotEntry is one statically-configured slot (POLLED/FIXED_DECENTRALIZED).
type SlotEntry struct {
	Src         int    `yaml:"src"`
	Dest        int    `yaml:"dest"`
	Rate        int    `yaml:"rate"`
	Type        string `yaml:"type"`
	SlotSeconds int    `yaml:"slot_seconds"`
}

// AuditConfig controls internal/audit's two stores.
type AuditConfig struct {
	Enabled           bool   `yaml:"enabled"`
	SQLitePath        string `yaml:"sqlite_path"`
	PebblePath        string `yaml:"pebble_path"`
	RetentionDays     int    `yaml:"retention_days"`
	ArchiveCompressed bool   `yaml:"archive_compressed"`
}

// TelemetryConfig controls internal/telemetry's MQTT republisher.
type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"`
	Port       int    `yaml:"port"`
	Topic      string `yaml:"topic"`
	ClientID   string `yaml:"client_id"`
	QueueDepth int    `yaml:"queue_depth"`
}

// StatusConfig controls internal/statussurface and internal/dashboard.
type StatusConfig struct {
	HTTPPort       int  `yaml:"http_port"`
	MetricsEnabled bool `yaml:"metrics_enabled"`
	EventsEnabled  bool `yaml:"events_enabled"`
	Dashboard      bool `yaml:"dashboard"`
}

// Load reads and parses a YAML daemon configuration file.
func Load(filename string) (*DaemonConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", filename)
	}
	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", filename)
	}
	return &cfg, nil
}

// Print displays a short summary of the loaded configuration.
func (c *DaemonConfig) Print() {
	fmt.Printf("MAC: type=%s modem_id=%d slot_seconds=%d expire_cycles=%d cycle_entries=%d\n",
		c.MAC.Type, c.MAC.ModemID, c.MAC.SlotSeconds, c.MAC.ExpireCycles, len(c.MAC.Cycle))
	if c.Audit.Enabled {
		fmt.Printf("Audit: sqlite=%s pebble=%s retention=%dd\n",
			c.Audit.SQLitePath, c.Audit.PebblePath, c.Audit.RetentionDays)
	}
	if c.Telemetry.Enabled {
		fmt.Printf("Telemetry: %s:%d (topic: %s)\n", c.Telemetry.Broker, c.Telemetry.Port, c.Telemetry.Topic)
	}
	if c.Status.HTTPPort > 0 {
		fmt.Printf("Status surface: http port %d (metrics=%v events=%v dashboard=%v)\n",
			c.Status.HTTPPort, c.Status.MetricsEnabled, c.Status.EventsEnabled, c.Status.Dashboard)
	}
}

// ToMACConfig translates the YAML-facing MACConfig into mac.Config,
// resolving the string Type/slot Type fields into their enums.
func (c MACConfig) ToMACConfig() (mac.Config, error) {
	mode, err := parseMode(c.Type)
	if err != nil {
		return mac.Config{}, err
	}
	cfg := mac.Config{
		Type:         mode,
		ModemID:      c.ModemID,
		SlotSeconds:  c.SlotSeconds,
		Rate:         c.Rate,
		ExpireCycles: c.ExpireCycles,
	}
	for _, e := range c.Cycle {
		st, err := parseSlotType(e.Type)
		if err != nil {
			return mac.Config{}, err
		}
		cfg.Cycle = append(cfg.Cycle, mac.Slot{
			Src:         e.Src,
			Dest:        e.Dest,
			Rate:        e.Rate,
			Type:        st,
			SlotSeconds: e.SlotSeconds,
		})
	}
	return cfg, nil
}

func parseMode(s string) (mac.Mode, error) {
	switch s {
	case "POLLED", "polled":
		return mac.Polled, nil
	case "FIXED_DECENTRALIZED", "fixed_decentralized":
		return mac.FixedDecentralized, nil
	case "AUTO_DECENTRALIZED", "auto_decentralized":
		return mac.AutoDecentralized, nil
	default:
		return 0, errors.Newf("config: unknown mac.type %q", s)
	}
}

func parseSlotType(s string) (mac.SlotType, error) {
	switch s {
	case "", "DATA", "data":
		return mac.SlotData, nil
	case "PING", "ping":
		return mac.SlotPing, nil
	case "REMUS_LBL", "remus_lbl":
		return mac.SlotRemusLBL, nil
	default:
		return 0, errors.Newf("config: unknown slot type %q", s)
	}
}
