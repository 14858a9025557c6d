package domain

import "time"

// Inventory is the shared counter protected by the lock strategies.
// Quantity never rests below zero. Version increments on every successful
// write and carries the optimistic strategy's conflict check.
type Inventory struct {
	ItemID    string
	Quantity  int
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
