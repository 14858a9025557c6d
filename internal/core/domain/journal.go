package domain

import "time"

// DecrementRecord is the audit entry written after a successful decrement.
// Records are journaled asynchronously; a lost record never implies a lost
// update on the inventory row itself.
type DecrementRecord struct {
	ID        string
	ItemID    string
	Amount    int
	Remaining int
	Strategy  string
	CreatedAt time.Time
}
