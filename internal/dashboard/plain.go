package dashboard

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/goby3/mac/stats"
)

// PlainDumper periodically logs a one-line status summary for
// non-interactive sessions (piped output, systemd journal) where the
// tview dashboard would be unusable.
type PlainDumper struct {
	tracker *stats.Tracker
	logger  *log.Logger
	start   time.Time
	stop    chan struct{}
}

func NewPlainDumper(tracker *stats.Tracker, logger *log.Logger, interval time.Duration) *PlainDumper {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	d := &PlainDumper{tracker: tracker, logger: logger, start: time.Now(), stop: make(chan struct{})}
	go d.run(interval)
	return d
}

func (d *PlainDumper) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.dump()
		}
	}
}

func (d *PlainDumper) dump() {
	if d.tracker == nil {
		return
	}
	d.logger.Printf("mac status: uptime=%s cycle_length=%ds slots=%d transmits=%s ticks=%s discoveries=%s evictions=%s",
		humanize.RelTime(d.start, time.Now(), "", ""),
		d.tracker.CurrentCycleLength(),
		d.tracker.CurrentSlotCount(),
		humanize.Comma(int64(d.tracker.TransmitCount())),
		humanize.Comma(int64(d.tracker.TicksObserved())),
		humanize.Comma(int64(d.tracker.Discoveries())),
		humanize.Comma(int64(d.tracker.Evictions())))
}

func (d *PlainDumper) Stop() {
	if d == nil {
		return
	}
	close(d.stop)
}
