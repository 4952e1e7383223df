package logger

import (
	"context"
	"log/slog"
	"time"
)

// CreditEvent represents one money movement or grant on a user's balance.
type CreditEvent struct {
	EventType     string // "debit", "refund", "grant"
	UserID        string
	SearchID      string
	TransactionID string
	Amount        int
	Reason        string
	// Query is the display-safe form of what was searched. Callers sanitize
	// before setting it; raw queries never reach the log.
	Query string
}

// AuditLogger writes an append-only audit line for every credit movement so
// that balance disputes can be reconstructed from logs alone.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogCreditEvent logs a credit movement.
func (al *AuditLogger) LogCreditEvent(event CreditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "credits"),
		slog.String("event_type", event.EventType),
		slog.String("user_id", event.UserID),
		slog.Int("amount", event.Amount),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.SearchID != "" {
		attrs = append(attrs, slog.String("search_id", event.SearchID))
	}
	if event.TransactionID != "" {
		attrs = append(attrs, slog.String("transaction_id", event.TransactionID))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Query != "" {
		attrs = append(attrs, slog.String("query", event.Query))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
