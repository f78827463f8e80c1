package domain

import "time"

// Account carries display metadata for an account. The scheduler only ever
// references accounts by ID; names and currencies are decoration for the
// API surface.
type Account struct {
	ID       string
	OwnerID  string
	Name     string
	Currency string
	Type     string

	CreatedAt time.Time
}
