package models

import (
	"time"
)

// Profile holds the spendable credit balance for a user. The user identity
// itself is issued externally; we only key on its stable ID.
type Profile struct {
	UserID    string
	Credits   int // never negative, enforced by the ledger store
	CreatedAt time.Time
	UpdatedAt time.Time
}
