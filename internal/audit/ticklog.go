package audit

import (
	"encoding/binary"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// TickLog persists every Event Surface tick firing (slot fired, whether
// it transmitted, fire time) to an embedded Pebble LSM store. Grounded
// on reputation/ipinfo_pebble.go's pebble-backed store: tick firings
// are much higher frequency (tens of Hz) than discovery/eviction
// events and favor Pebble's write-optimized LSM over the Store's
// SQLite row store.
type TickLog struct {
	db     *pebble.DB
	logger *log.Logger
	seq    uint64
}

// OpenTickLog opens (creating if needed) a Pebble-backed tick log at path.
func OpenTickLog(path string, logger *log.Logger) (*TickLog, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "audit: pebble open %s", path)
	}
	return &TickLog{db: db, logger: logger}, nil
}

// tickKey encodes a monotonically increasing key so iteration returns
// ticks in firing order regardless of clock skew between entries.
func tickKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// RecordTick implements mac.AuditSink's tick-logging half. src/dest/
// slotType/transmitted/at are packed into a small fixed-width value;
// this is a diagnostics log, not a queryable index, so there is no
// need for a richer encoding.
func (l *TickLog) RecordTick(src, dest, slotType int, transmitted bool, at time.Time) {
	if l == nil || l.db == nil {
		return
	}
	value := make([]byte, 26)
	binary.BigEndian.PutUint64(value[0:8], uint64(int64(src)))
	binary.BigEndian.PutUint64(value[8:16], uint64(int64(dest)))
	value[16] = byte(slotType)
	if transmitted {
		value[17] = 1
	}
	binary.BigEndian.PutUint64(value[18:26], uint64(at.UTC().UnixNano()))

	l.seq++
	if err := l.db.Set(tickKey(l.seq), value, pebble.NoSync); err != nil {
		l.logger.Printf("audit: ticklog write failed: %v", err)
	}
}

// PruneBefore removes tick entries recorded before cutoff. Pebble has
// no native TTL, so this scans the key range and issues a batched
// DeleteRange once the boundary sequence is known.
func (l *TickLog) PruneBefore(cutoff time.Time) {
	if l == nil || l.db == nil {
		return
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		l.logger.Printf("audit: ticklog prune iterator: %v", err)
		return
	}
	defer iter.Close()

	var boundary []byte
	for iter.First(); iter.Valid(); iter.Next() {
		value := iter.Value()
		if len(value) < 26 {
			continue
		}
		nanos := int64(binary.BigEndian.Uint64(value[18:26]))
		if time.Unix(0, nanos).After(cutoff) {
			break
		}
		boundary = append([]byte(nil), iter.Key()...)
	}
	if boundary == nil {
		return
	}
	upper := append(append([]byte(nil), boundary...), 0x00)
	if err := l.db.DeleteRange(tickKey(0), upper, pebble.NoSync); err != nil {
		l.logger.Printf("audit: ticklog prune delete: %v", err)
	}
}

// Close releases the underlying Pebble handle.
func (l *TickLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
