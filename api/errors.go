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

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/gavel/governance"
)

const (
	errCodeBadRequest = "bad_request"
	errCodeNotFound   = "not_found"
	errCodeInternal   = "internal_error"
)

// errorMapping is checked in order. ErrPriceChanged comes before
// ErrOracleUnavailable since an oracle error may wrap it.
var errorMapping = []struct {
	err    error
	code   string
	status int
}{
	{governance.ErrNotAMember, "not_a_member", http.StatusForbidden},
	{governance.ErrProposalNotFound, "proposal_not_found", http.StatusNotFound},
	{governance.ErrAlreadyVoted, "already_voted", http.StatusConflict},
	{governance.ErrAlreadyExecuted, "already_executed", http.StatusConflict},
	{governance.ErrDeadlinePassed, "deadline_passed", http.StatusConflict},
	{governance.ErrDeadlineNotReached, "deadline_not_reached", http.StatusConflict},
	{governance.ErrAssetUnavailable, "asset_unavailable", http.StatusGone},
	{governance.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{governance.ErrPriceChanged, "price_changed", http.StatusConflict},
	{governance.ErrOracleUnavailable, "oracle_unavailable", http.StatusServiceUnavailable},
	{governance.ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
}

// errorStatus returns the HTTP status and error code for an engine error
func errorStatus(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, errCodeInternal
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"path", c.FullPath(),
			"request_id", c.GetString(contextKeyRequestID),
			"error", err,
		)
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   errCodeBadRequest,
		Message: err.Error(),
	})
}
