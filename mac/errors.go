package mac

import "errors"

var (
	errUnknownMode     = errors.New("mac: unknown MAC type")
	errNegativeModemID = errors.New("mac: modem id must be >= 0")
	errZeroSlotSeconds = errors.New("mac: slot_seconds must be > 0")
)
