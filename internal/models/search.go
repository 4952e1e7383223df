package models

import (
	"time"
)

// Search types
const (
	SearchTypeName  = "name"
	SearchTypePhone = "phone"
	SearchTypeImage = "image"
)

// Search statuses. A search is created pending by Debit and reaches exactly
// one terminal state: completed (Finalize) or refunded (Refund).
const (
	SearchStatusPending   = "pending"
	SearchStatusCompleted = "completed"
	SearchStatusRefunded  = "refunded"
)

// Refund reason codes recorded when a search is refunded
const (
	RefundReasonMaintenance = "api_maintenance_503"
	RefundReasonServerError = "server_error_500"
	RefundReasonAPIError    = "api_error_500"
	RefundReasonTimeout     = "request_timeout"
	RefundReasonNetwork     = "network_error"
	RefundReasonRateLimited = "rate_limited_429"
	RefundReasonBadInput    = "bad_request_400"
	RefundReasonUnknown     = "unknown_error"
)

// Search is the lifecycle record of one paid lookup, from debit to terminal
// state. Query is write-once and stored for history display only.
type Search struct {
	ID             string
	UserID         string
	SearchType     string
	Query          string
	Cost           int
	Status         string
	ResultsCount   *int     // set only on completion
	RefundReason   *string  // set only on refund
	ProvidersTried []string // upstream providers attempted, in order
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Terminal reports whether the search has reached a final state.
func (s *Search) Terminal() bool {
	return s.Status == SearchStatusCompleted || s.Status == SearchStatusRefunded
}

// DebitResult is returned by a successful Debit.
type DebitResult struct {
	SearchID  string
	Remaining int
}
