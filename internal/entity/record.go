package entity

import "time"

// Record is one ledger row: the state of an entity over a validity interval.
//
// For every key the rows partition time: each row's ValidTo equals the next
// row's ValidFrom, the last row has ValidTo unset, and exactly one row is
// current once the key has been observed.
type Record struct {
	Key         Key
	Attributes  Attrs
	ContentHash string
	ValidFrom   time.Time
	ValidTo     time.Time // zero while the row is current
	IsCurrent   bool
}
