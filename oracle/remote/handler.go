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

package remote

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/gavel/governance"
)

// Handler serves a membership oracle and a purchase oracle over HTTP
type Handler struct {
	membership  governance.MembershipOracle
	marketplace governance.PurchaseOracle
	logger      *slog.Logger
}

func NewHandler(
	membership governance.MembershipOracle,
	marketplace governance.PurchaseOracle,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Handler{
		membership:  membership,
		marketplace: marketplace,
		logger:      logger.With("component", "oracle"),
	}
}

// Routes attaches the oracle routes to r
func (h *Handler) Routes(r gin.IRouter) {
	r.GET(membersPath+":address", h.getMember)
	r.GET(assetsPath+":asset", h.getAsset)
	r.POST(assetsPath+":asset/purchase", h.purchase)
}

// Router returns a standalone gin engine serving the oracle routes
func (h *Handler) Router() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	h.Routes(g)
	return g
}

func (h *Handler) writeError(c *gin.Context, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(
			"oracle request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func (h *Handler) getMember(c *gin.Context) {
	addr := governance.Address(c.Param("address"))
	ctx := c.Request.Context()
	tokens, err := h.membership.TokensOwnedBy(ctx, addr)
	if err != nil {
		h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
		return
	}
	ownsAny, err := h.membership.OwnsAny(ctx, addr)
	if err != nil {
		h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
		return
	}
	balance, err := h.membership.BalanceOf(ctx, addr)
	if err != nil {
		h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
		return
	}
	if tokens == nil {
		tokens = []governance.TokenID{}
	}
	c.JSON(http.StatusOK, MemberResponse{
		Address: string(addr),
		OwnsAny: ownsAny,
		Balance: balance,
		Tokens:  tokens,
	})
}

func parseAsset(c *gin.Context) (governance.AssetID, error) {
	id, err := strconv.ParseUint(c.Param("asset"), 10, 64)
	if err != nil {
		return 0, errors.New("asset id must be an unsigned integer")
	}
	return governance.AssetID(id), nil
}

func (h *Handler) getAsset(c *gin.Context) {
	asset, err := parseAsset(c)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx := c.Request.Context()
	resp := AssetResponse{AssetID: uint64(asset)}
	available, err := h.marketplace.IsAvailable(ctx, asset)
	if err != nil {
		h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
		return
	}
	if available {
		price, err := h.marketplace.GetPrice(ctx, asset)
		switch {
		case errors.Is(err, governance.ErrAssetUnavailable):
			available = false
		case err != nil:
			h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
			return
		default:
			resp.Price = price.String()
		}
	}
	resp.Available = available
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) purchase(c *gin.Context) {
	asset, err := parseAsset(c)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	err = h.marketplace.Purchase(c.Request.Context(), asset, amount)
	switch {
	case err == nil:
	case errors.Is(err, governance.ErrAssetUnavailable):
		h.writeError(c, http.StatusGone, "asset_unavailable", err)
		return
	case errors.Is(err, governance.ErrPriceChanged):
		h.writeError(c, http.StatusConflict, "price_changed", err)
		return
	default:
		h.writeError(c, http.StatusServiceUnavailable, "oracle_unavailable", err)
		return
	}
	h.logger.Info(
		"asset purchased",
		"asset_id", uint64(asset),
		"amount", amount.String(),
	)
	c.JSON(http.StatusOK, PurchaseResponse{
		AssetID:   uint64(asset),
		Amount:    amount.String(),
		Purchased: true,
	})
}
