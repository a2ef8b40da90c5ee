// Package dashboard renders a live terminal view of MAC state, adapted
// from dashboard.go's tview layout and QueueUpdateDraw flush pattern.
// When stdout is not a TTY it falls back to a periodic plain-text dump,
// matching main.go's isStdoutTTY gating.
package dashboard

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"

	"github.com/goby3/mac/mac"
	"github.com/goby3/mac/stats"
)

const paneMaxLines = 8

type paneType int

const (
	paneDiscovery paneType = iota
	paneTick
	paneSystem
)

type paneEvent struct {
	pane paneType
	line string
}

// Dashboard is a terminal UI fed by mac.AuditSink callbacks. Construct
// one with New; a nil *Dashboard is always safe to call methods on.
type Dashboard struct {
	app             *tview.Application
	statsView       *tview.TextView
	discoveryView   *tview.TextView
	tickView        *tview.TextView
	systemView      *tview.TextView
	discoveryLines  []string
	tickLines       []string
	systemLines     []string
	paneMu          sync.Mutex
	events          chan paneEvent
	closed          atomic.Bool
	ready           chan struct{}
	tracker         *stats.Tracker
	start           time.Time
}

// IsTerminal reports whether stdout is attached to a TTY, the gate
// callers use to decide between New and a plain periodic dump.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// New builds and starts the tview dashboard. Returns nil if enable is
// false, so callers can unconditionally pass the result around.
func New(enable bool, tracker *stats.Tracker) *Dashboard {
	if !enable {
		return nil
	}

	makePane := func(title string) *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
		tv.SetTitle(title).SetTitleAlign(tview.AlignLeft)
		return tv
	}

	statsView := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	statsView.SetTextColor(tcell.ColorYellow).SetTitle("MAC Status").SetTitleAlign(tview.AlignLeft)
	discoveryView := makePane("Discovery / Eviction / Cycle Changes")
	tickView := makePane("Recent Ticks")
	systemView := makePane("System")
	systemView.SetTextColor(tcell.ColorYellow)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(statsView, 7, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(discoveryView, 9, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(tickView, 9, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(systemView, 9, 0, false)

	app := tview.NewApplication().SetRoot(layout, true).EnableMouse(false)
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	d := &Dashboard{
		app:           app,
		statsView:     statsView,
		discoveryView: discoveryView,
		tickView:      tickView,
		systemView:    systemView,
		events:        make(chan paneEvent, 256),
		ready:         ready,
		tracker:       tracker,
		start:         time.Now(),
	}

	go d.runEventLoop()
	go d.runStatsRefresh()
	go func() {
		if err := app.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		}
	}()

	return d
}

// Stop halts the refresh loops and tears down the terminal UI.
func (d *Dashboard) Stop() {
	if d == nil || d.app == nil {
		return
	}
	d.closed.Store(true)
	close(d.events)
	d.app.Stop()
}

// WaitReady blocks until the first draw has happened, for tests and
// startup sequencing that need the screen initialized.
func (d *Dashboard) WaitReady() {
	if d == nil || d.ready == nil {
		return
	}
	<-d.ready
}

func (d *Dashboard) runStatsRefresh() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if d.closed.Load() {
			return
		}
		d.refreshStats()
	}
}

func (d *Dashboard) refreshStats() {
	if d.tracker == nil {
		return
	}
	lines := []string{
		fmt.Sprintf("uptime: %s", humanize.RelTime(d.start, time.Now(), "", "")),
		fmt.Sprintf("cycle length: %ds  slots: %d", d.tracker.CurrentCycleLength(), d.tracker.CurrentSlotCount()),
		fmt.Sprintf("transmits: %s  ticks: %s", humanize.Comma(int64(d.tracker.TransmitCount())), humanize.Comma(int64(d.tracker.TicksObserved()))),
		fmt.Sprintf("discoveries: %s  evictions: %s  cycle changes: %s",
			humanize.Comma(int64(d.tracker.Discoveries())),
			humanize.Comma(int64(d.tracker.Evictions())),
			humanize.Comma(int64(d.tracker.CycleChanges()))),
		fmt.Sprintf("ranging (2-way): %s  ranging (REMUS LBL): %s",
			humanize.Comma(int64(d.tracker.RangingCount(mac.TwoWayPing))),
			humanize.Comma(int64(d.tracker.RangingCount(mac.RemusLBLRanging)))),
	}
	text := strings.Join(lines, "\n")
	d.app.QueueUpdateDraw(func() {
		d.statsView.SetText(text)
	})
}

// RecordDiscovery implements mac.AuditSink.
func (d *Dashboard) RecordDiscovery(src int, at time.Time) {
	d.enqueue(paneDiscovery, fmt.Sprintf("discovered src=%d", src))
}

// RecordEviction implements mac.AuditSink.
func (d *Dashboard) RecordEviction(src int, at time.Time) {
	d.enqueue(paneDiscovery, fmt.Sprintf("evicted src=%d", src))
}

// RecordCycleChange implements mac.AuditSink.
func (d *Dashboard) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	d.enqueue(paneDiscovery, fmt.Sprintf("cycle changed: length=%ds slots=%d", cycleLength, slotCount))
}

// RecordTick implements mac.AuditSink.
func (d *Dashboard) RecordTick(s mac.Slot, transmitted bool, at time.Time) {
	d.enqueue(paneTick, fmt.Sprintf("src=%d dest=%d type=%d transmitted=%t", s.Src, s.Dest, s.Type, transmitted))
}

// AppendSystem writes a line to the system pane, the sink for the
// fanout used by logging.Setup's console half.
func (d *Dashboard) AppendSystem(line string) {
	d.enqueue(paneSystem, line)
}

func (d *Dashboard) enqueue(p paneType, line string) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.events <- paneEvent{pane: p, line: line}:
	default:
		// drop on saturation to keep the caller non-blocking
	}
}

func (d *Dashboard) runEventLoop() {
	for ev := range d.events {
		d.appendLine(ev.pane, ev.line)
	}
}

func (d *Dashboard) appendLine(p paneType, line string) {
	tsLine := time.Now().Format("2006/01/02 15:04:05 ") + line

	d.paneMu.Lock()
	buf := d.getPaneBuffer(p)
	view := d.getPaneView(p)
	*buf = append(*buf, tsLine)
	if len(*buf) > paneMaxLines {
		*buf = (*buf)[len(*buf)-paneMaxLines:]
	}
	text := strings.Join(*buf, "\n")
	d.paneMu.Unlock()

	d.app.QueueUpdateDraw(func() {
		view.SetText(text)
		view.ScrollToEnd()
	})
}

func (d *Dashboard) getPaneBuffer(p paneType) *[]string {
	switch p {
	case paneDiscovery:
		return &d.discoveryLines
	case paneTick:
		return &d.tickLines
	default:
		return &d.systemLines
	}
}

func (d *Dashboard) getPaneView(p paneType) *tview.TextView {
	switch p {
	case paneDiscovery:
		return d.discoveryView
	case paneTick:
		return d.tickView
	default:
		return d.systemView
	}
}

var _ mac.AuditSink = (*Dashboard)(nil)
