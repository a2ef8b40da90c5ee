package mac

import "time"

// timer is a single logical one-shot alarm, polled rather than driven
// by a goroutine. This mirrors the original's do_work(), which lets the
// boost::asio::io_service run only handlers that are already ready —
// there is no blocking wait inside the MAC itself (spec.md §5, §9).
type timer struct {
	active bool
	at     time.Time
}

// restart cancels any pending firing and arms a new one-shot at the
// given absolute UTC instant.
func (t *timer) restart(at time.Time) {
	t.active = true
	t.at = at
}

// stop cancels any pending firing.
func (t *timer) stop() {
	t.active = false
}

// due reports whether the timer is armed and its deadline has passed.
// Called from DoWork; firing past instants are honored immediately, so
// a restart(at) in the past fires on the very next poll (spec.md §5).
func (t *timer) due(now time.Time) bool {
	return t.active && !now.Before(t.at)
}
