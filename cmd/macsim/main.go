// Command macsim runs several in-process mac.Manager instances against
// a shared fake modem to exercise auto-discovery and expiry without
// acoustic hardware. Grounded on loadharness/main.go's flag-configured,
// fixed-duration load generator shape.
package main

import (
	"context"
	"flag"
	"log"
	"sync/atomic"
	"time"

	"github.com/goby3/mac/mac"
)

func main() {
	var (
		peers       = flag.Int("peers", 3, "number of AUTO_DECENTRALIZED peers to simulate")
		runFor      = flag.Duration("duration", 2*time.Minute, "how long to run the simulation")
		slotSeconds = flag.Int("slot-seconds", 10, "slot length in seconds")
		expireCyc   = flag.Int("expire-cycles", 3, "cycles of silence before a peer is evicted")
		speed       = flag.Float64("speed", 50.0, "simulated-seconds per wall-clock second")
	)
	flag.Parse()

	if *peers <= 0 {
		log.Fatalf("macsim: peers must be >0 (got %d)", *peers)
	}
	if *speed <= 0 {
		log.Fatalf("macsim: speed must be >0 (got %f)", *speed)
	}

	log.Printf("macsim: starting with peers=%d duration=%s slot_seconds=%d expire_cycles=%d speed=%.1fx",
		*peers, runFor.String(), *slotSeconds, *expireCyc, *speed)

	modem := newFakeModem()
	managers := make([]*mac.Manager, *peers)
	clock := newSimClock(time.Now())

	for i := range managers {
		id := i
		transmit := make(chan mac.TransmitRequest, 8)
		ranging := make(chan mac.RangingRequest, 8)
		m := mac.NewManager(transmit, ranging, mac.WithClock(clock.now))
		cfg := mac.Config{
			Type:         mac.AutoDecentralized,
			ModemID:      id,
			SlotSeconds:  *slotSeconds,
			ExpireCycles: *expireCyc,
			Cycle: []mac.Slot{
				{Src: id, Dest: mac.BroadcastID, Type: mac.SlotData, SlotSeconds: *slotSeconds},
			},
		}
		if err := m.Startup(cfg); err != nil {
			log.Fatalf("macsim: peer %d startup: %v", id, err)
		}
		go modem.drain(id, transmit, ranging)
		managers[i] = m
	}

	ctx, cancel := context.WithTimeout(context.Background(), *runFor)
	defer cancel()

	const tickInterval = 50 * time.Millisecond
	simStep := time.Duration(float64(tickInterval) * *speed)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			report(managers, modem)
			return
		case <-ticker.C:
			clock.advance(simStep)
			modem.deliverHeard(managers)
			for _, m := range managers {
				m.DoWork()
			}
		}
	}
}

func report(managers []*mac.Manager, modem *fakeModem) {
	log.Println("macsim: simulation complete")
	for i, m := range managers {
		log.Printf("peer %d: state=%v", i, m.State())
	}
	log.Printf("modem: transmits=%d ranging=%d", modem.transmits.Load(), modem.rangings.Load())
}

// fakeModem stands in for acoustic hardware: it drains each manager's
// outbound channels and, for every transmission, records which src
// fired so deliverHeard can simulate every peer hearing every other
// peer's traffic.
type fakeModem struct {
	transmits atomic.Uint64
	rangings  atomic.Uint64

	heardCh chan int
}

func newFakeModem() *fakeModem {
	return &fakeModem{heardCh: make(chan int, 256)}
}

func (f *fakeModem) drain(id int, transmit <-chan mac.TransmitRequest, ranging <-chan mac.RangingRequest) {
	for {
		select {
		case r, ok := <-transmit:
			if !ok {
				return
			}
			f.transmits.Add(1)
			select {
			case f.heardCh <- r.Src:
			default:
			}
		case r, ok := <-ranging:
			if !ok {
				return
			}
			f.rangings.Add(1)
			_ = r
		}
	}
}

// deliverHeard drains any pending "heard" notices and calls
// HandleModemAllIncoming on every manager so auto-discovery sees every
// peer's transmissions, as a shared acoustic channel would.
func (f *fakeModem) deliverHeard(managers []*mac.Manager) {
	for {
		select {
		case src := <-f.heardCh:
			for _, m := range managers {
				m.HandleModemAllIncoming(src)
			}
		default:
			return
		}
	}
}

// simClock lets the harness run many simulated hours of TDMA cycling
// in a short wall-clock run.
type simClock struct {
	t atomic.Int64
}

func newSimClock(start time.Time) *simClock {
	c := &simClock{}
	c.t.Store(start.UnixNano())
	return c
}

func (c *simClock) now() time.Time {
	return time.Unix(0, c.t.Load())
}

func (c *simClock) advance(d time.Duration) {
	c.t.Add(int64(d))
}
