package domain

import "time"

// Scope is a scope the server knows about. The claim lists associated
// with each scope live in the claims registry; the store only records
// which scopes exist so clients can be bound to them.
type Scope struct {
	Name        string
	Description string
	CreatedAt   time.Time
}
