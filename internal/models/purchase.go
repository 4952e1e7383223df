package models

import (
	"time"
)

// CreditPurchase records a credit grant from the billing provider's webhook.
// TransactionID is unique so replayed webhook deliveries cannot double-credit.
type CreditPurchase struct {
	ID            string
	UserID        string
	TransactionID string
	ProductID     string
	CreditsAdded  int
	Notes         string
	CreatedAt     time.Time
}
