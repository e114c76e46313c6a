// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governance

import (
	"errors"
	"fmt"
)

var (
	ErrNotAMember         = errors.New("caller does not own a membership token")
	ErrAssetUnavailable   = errors.New("asset is not available for purchase")
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrDeadlinePassed     = errors.New("voting deadline has passed")
	ErrDeadlineNotReached = errors.New("voting deadline has not been reached")
	ErrAlreadyVoted       = errors.New("all caller tokens have already voted on this proposal")
	ErrAlreadyExecuted    = errors.New("proposal has already been executed")
	ErrInsufficientFunds  = errors.New("treasury balance is below the asset price")
	ErrOracleUnavailable  = errors.New("oracle unavailable")
	// ErrPriceChanged is returned by a purchase oracle when the offered
	// amount no longer matches the current price
	ErrPriceChanged = errors.New("asset price changed")
	// ErrInvalidAmount is returned for non-positive deposits
	ErrInvalidAmount = errors.New("amount must be positive")
)

// OracleError wraps a failed membership or purchase oracle call. It matches
// ErrOracleUnavailable with errors.Is and unwraps to the underlying cause.
type OracleError struct {
	Err error
	Op  string
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrOracleUnavailable, e.Op, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

func (e *OracleError) Is(target error) bool {
	return target == ErrOracleUnavailable
}

// IsRetryable reports whether an error signals a transient external failure
// that a caller may retry with backoff. Rule violations are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOracleUnavailable)
}

// errorKind returns a short label for an engine error, used in metrics
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrAssetUnavailable):
		return "asset_unavailable"
	case errors.Is(err, ErrProposalNotFound):
		return "proposal_not_found"
	case errors.Is(err, ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, ErrDeadlineNotReached):
		return "deadline_not_reached"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrAlreadyExecuted):
		return "already_executed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrPriceChanged):
		return "price_changed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "internal"
	}
}
