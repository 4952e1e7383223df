package providers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pinkflag/backend/internal/models"
)

// Outcome classifies a failed provider call. The classification decides
// whether the debited credit is returned: provider outage modes refund,
// client input errors and provider rate limits do not (the latter two are
// policy-overridable at the orchestrator).
type Outcome int

const (
	// OutcomeMaintenance: provider returned 503, temporarily unavailable.
	OutcomeMaintenance Outcome = iota + 1
	// OutcomeServerError: provider returned 500.
	OutcomeServerError
	// OutcomeUpstreamError: provider returned another 5xx.
	OutcomeUpstreamError
	// OutcomeTimeout: the call exceeded its deadline.
	OutcomeTimeout
	// OutcomeNetwork: DNS or connection-level failure.
	OutcomeNetwork
	// OutcomeRateLimited: provider returned 429.
	OutcomeRateLimited
	// OutcomeBadInput: provider rejected the request as malformed (400).
	OutcomeBadInput
	// OutcomeUnknown: anything else after the debit.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMaintenance:
		return "maintenance"
	case OutcomeServerError:
		return "server_error"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNetwork:
		return "network"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeBadInput:
		return "bad_input"
	}
	return "unknown"
}

// RefundReason maps an outcome to the reason code recorded on a refunded
// search. Non-refundable outcomes still map to a code so that a policy
// override (refund-on-rate-limit, refund-on-bad-input) has one to record.
func (o Outcome) RefundReason() string {
	switch o {
	case OutcomeMaintenance:
		return models.RefundReasonMaintenance
	case OutcomeServerError:
		return models.RefundReasonServerError
	case OutcomeUpstreamError:
		return models.RefundReasonAPIError
	case OutcomeTimeout:
		return models.RefundReasonTimeout
	case OutcomeNetwork:
		return models.RefundReasonNetwork
	case OutcomeRateLimited:
		return models.RefundReasonRateLimited
	case OutcomeBadInput:
		return models.RefundReasonBadInput
	}
	return models.RefundReasonUnknown
}

// Refundable reports the default refund policy for the outcome.
func (o Outcome) Refundable() bool {
	switch o {
	case OutcomeRateLimited, OutcomeBadInput:
		return false
	}
	return true
}

// Error is a classified provider failure. Status is the provider's HTTP
// status when the failure was an HTTP response, 0 otherwise.
type Error struct {
	Outcome Outcome
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider call failed: %s (status %d)", e.Outcome, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider call failed: %s: %v", e.Outcome, e.Err)
	}
	return fmt.Sprintf("provider call failed: %s", e.Outcome)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError classifies a non-2xx provider response.
func statusError(status int) *Error {
	var outcome Outcome
	switch {
	case status == 503:
		outcome = OutcomeMaintenance
	case status == 500:
		outcome = OutcomeServerError
	case status > 500 && status < 600:
		outcome = OutcomeUpstreamError
	case status == 429:
		outcome = OutcomeRateLimited
	case status == 400:
		outcome = OutcomeBadInput
	default:
		outcome = OutcomeUnknown
	}
	return &Error{Outcome: outcome, Status: status}
}

// callError classifies a transport-level failure from http.Client.Do.
func callError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Outcome: OutcomeTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Outcome: OutcomeTimeout, Err: err}
	}

	return &Error{Outcome: OutcomeNetwork, Err: err}
}

// decodeError wraps a malformed success payload; 2xx without a usable body
// is not a success.
func decodeError(err error) *Error {
	return &Error{Outcome: OutcomeUnknown, Err: err}
}
