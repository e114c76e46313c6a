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
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/gavel/governance"
)

const maxTreasuryEntries = 1000

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Proposals: s.engine.NumProposals(),
	})
}

func (s *Server) handleListProposals(c *gin.Context) {
	now := s.engine.Now()
	proposals := s.engine.Proposals()
	ret := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		ret = append(ret, newProposalResponse(p, now))
	}
	c.JSON(http.StatusOK, ret)
}

func (s *Server) handleProposalCount(c *gin.Context) {
	c.JSON(http.StatusOK, ProposalCountResponse{Count: s.engine.NumProposals()})
}

func parseUintParam(c *gin.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer", name)
	}
	return v, nil
}

func (s *Server) handleGetProposal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	p, err := s.engine.GetProposal(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProposalResponse(p, s.engine.Now()))
}

func (s *Server) handleHasVoted(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	token, err := parseUintParam(c, "token")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if _, err := s.engine.GetProposal(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HasVotedResponse{
		ProposalID: id,
		TokenID:    token,
		Voted:      s.engine.HasVoted(id, governance.TokenID(token)),
	})
}

func (s *Server) handleGetMember(c *gin.Context) {
	addr := strings.TrimSpace(c.Param("address"))
	if addr == "" {
		writeBadRequest(c, errors.New("address must not be empty"))
		return
	}
	info, err := s.engine.MemberBalance(
		c.Request.Context(),
		governance.Address(addr),
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMemberResponse(info))
}

func (s *Server) handleCreateProposal(c *gin.Context) {
	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	id, err := s.engine.CreateProposal(
		c.Request.Context(),
		callerFrom(c),
		governance.AssetID(*req.AssetID),
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateProposalResponse{ProposalID: id})
}

func (s *Server) handleVote(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	vote, err := governance.ParseVote(req.Vote)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	weight, err := s.engine.VoteOnProposal(
		c.Request.Context(),
		callerFrom(c),
		id,
		vote,
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{
		ProposalID: id,
		Vote:       vote.String(),
		Weight:     weight,
	})
}

func (s *Server) handleExecute(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	outcome, err := s.engine.ExecuteProposal(
		c.Request.Context(),
		callerFrom(c),
		id,
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExecutionResponse(outcome))
}

func (s *Server) handleGetReceipt(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if s.config.History == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   errCodeNotFound,
			Message: "receipts are not stored",
		})
		return
	}
	if _, err := s.engine.GetProposal(id); err != nil {
		s.writeError(c, err)
		return
	}
	receipt, err := s.config.History.Receipt(id)
	if err != nil {
		// A proposal without a purchase has no receipt
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   errCodeNotFound,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ReceiptResponse{
		ID:         receipt.ID,
		ProposalID: receipt.ProposalID,
		AssetID:    uint64(receipt.AssetID),
		Price:      amountString(receipt.Price),
		Status:     string(receipt.Status),
		ExecutedAt: receipt.ExecutedAt,
	})
}

func (s *Server) handleTreasury(c *gin.Context) {
	c.JSON(http.StatusOK, TreasuryResponse{
		Balance: s.engine.TreasuryBalance().String(),
	})
}

func (s *Server) handleTreasuryEntries(c *gin.Context) {
	if s.config.History == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   errCodeNotFound,
			Message: "treasury journal is not stored",
		})
		return
	}
	limit := maxTreasuryEntries
	if v := c.Query("limit"); v != "" {
		tmpLimit, err := strconv.Atoi(v)
		if err != nil || tmpLimit <= 0 {
			writeBadRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(tmpLimit, maxTreasuryEntries)
	}
	entries, err := s.config.History.TreasuryEntries(limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ret := make([]TreasuryEntryResponse, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, TreasuryEntryResponse{
			Timestamp:    e.Timestamp,
			ProposalID:   e.ProposalID,
			Kind:         string(e.Kind),
			Amount:       amountString(e.Amount),
			BalanceAfter: amountString(e.BalanceAfter),
			Counterparty: string(e.Counterparty),
		})
	}
	c.JSON(http.StatusOK, ret)
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q: must be a decimal integer", s)
	}
	return amount, nil
}

func (s *Server) handleDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	balance, err := s.engine.Deposit(
		c.Request.Context(),
		governance.Address(req.From),
		amount,
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TreasuryResponse{Balance: balance.String()})
}
