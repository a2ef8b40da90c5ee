package telemetry

import (
	"log"
	"testing"
	"time"

	"github.com/goby3/mac/mac"
)

func newTestPublisher(depth int) *Publisher {
	return NewPublisher("localhost", 1883, "goby/mac/events", "test-client", depth, log.New(log.Writer(), "", 0))
}

func TestPublisherRecordTickEnqueuesPayload(t *testing.T) {
	p := newTestPublisher(4)
	p.RecordTick(mac.Slot{Src: 3, Dest: 1, Type: mac.SlotPing}, true, time.Unix(0, 0))

	select {
	case payload := <-p.queue:
		if len(payload) == 0 {
			t.Fatal("expected non-empty JSON payload")
		}
	default:
		t.Fatal("expected queued payload")
	}
}

func TestPublisherDropsOldestWhenFull(t *testing.T) {
	p := newTestPublisher(2)
	p.RecordDiscovery(1, time.Unix(1, 0))
	p.RecordDiscovery(2, time.Unix(2, 0))
	p.RecordDiscovery(3, time.Unix(3, 0)) // should evict src 1's event

	if len(p.queue) != 2 {
		t.Fatalf("expected queue to stay at capacity 2, got %d", len(p.queue))
	}

	first := <-p.queue
	if !containsAll(string(first), `"src":2`) {
		t.Fatalf("expected oldest (src=1) dropped, first remaining event was %s", first)
	}
}

func TestPublisherAsAuditSinkInterface(t *testing.T) {
	var _ mac.AuditSink = newTestPublisher(1)
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		found := false
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
