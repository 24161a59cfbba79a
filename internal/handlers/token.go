package handlers

import (
	"github.com/gin-gonic/gin"

	"marpelink-escrow-server/internal/token"
	"marpelink-escrow-server/internal/utils"
)

// TokenHandler exposes the HLUSD stablecoin.
type TokenHandler struct {
	Token         *token.Token
	EscrowAddress string
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tok *token.Token, escrowAddress string) *TokenHandler {
	return &TokenHandler{Token: tok, EscrowAddress: escrowAddress}
}

// AmountResponse is an amount in base units with its decimal rendering.
type AmountResponse struct {
	Amount          int64  `json:"amount"`
	AmountFormatted string `json:"amountFormatted"`
}

func (h *TokenHandler) amount(units int64) AmountResponse {
	return AmountResponse{Amount: units, AmountFormatted: utils.FormatAmount(units, h.Token.Decimals)}
}

// GetTokenInfo returns the token metadata and total supply.
func (h *TokenHandler) GetTokenInfo(c *gin.Context) {
	supply, err := h.Token.TotalSupply(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch supply: "+err.Error())
		return
	}
	utils.Success(c, "Token fetched successfully", gin.H{
		"symbol":       h.Token.Symbol,
		"decimals":     h.Token.Decimals,
		"totalSupply":  h.amount(supply),
		"faucetAmount": h.amount(h.Token.FaucetAmount),
	})
}

// GetBalance returns the balance of an address.
func (h *TokenHandler) GetBalance(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	balance, err := h.Token.BalanceOf(c.Request.Context(), address)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch balance: "+err.Error())
		return
	}
	utils.Success(c, "Balance fetched successfully", h.amount(balance))
}

// GetAllowance returns what spender may still move from owner.
func (h *TokenHandler) GetAllowance(c *gin.Context) {
	owner, ok := addressParam(c, "owner")
	if !ok {
		return
	}
	spender, ok := addressParam(c, "spender")
	if !ok {
		return
	}
	allowance, err := h.Token.Allowance(c.Request.Context(), owner, spender)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch allowance: "+err.Error())
		return
	}
	utils.Success(c, "Allowance fetched successfully", h.amount(allowance))
}

// ApproveRequest represents the request body for an allowance change.
type ApproveRequest struct {
	Spender string `json:"spender" binding:"required" validate:"eth_addr"`
	Amount  string `json:"amount" binding:"required"`
}

// Approve sets the caller's allowance for spender.
func (h *TokenHandler) Approve(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.approve(c, owner, utils.NormalizeAddress(req.Spender), req.Amount)
}

// ApproveEscrowRequest represents the request body for approving the escrow.
type ApproveEscrowRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// ApproveEscrow sets the caller's allowance for the escrow custody address.
func (h *TokenHandler) ApproveEscrow(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	var req ApproveEscrowRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.approve(c, owner, h.EscrowAddress, req.Amount)
}

func (h *TokenHandler) approve(c *gin.Context, owner, spender, raw string) {
	amount, ok := parseAmount(c, raw, h.Token.Decimals)
	if !ok {
		return
	}
	receipt, err := h.Token.Approve(c.Request.Context(), owner, spender, amount)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Allowance updated successfully", txResponse(receipt))
}

// TransferRequest represents the request body for a transfer or mint.
type TransferRequest struct {
	To     string `json:"to" binding:"required" validate:"eth_addr"`
	Amount string `json:"amount" binding:"required"`
}

// Transfer moves tokens from the caller.
func (h *TokenHandler) Transfer(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	var req TransferRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount, h.Token.Decimals)
	if !ok {
		return
	}
	receipt, err := h.Token.Transfer(c.Request.Context(), from, utils.NormalizeAddress(req.To), amount)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Transfer successful", txResponse(receipt))
}

// Faucet mints the configured test amount to the caller.
func (h *TokenHandler) Faucet(c *gin.Context) {
	to, ok := caller(c)
	if !ok {
		return
	}
	receipt, err := h.Token.Faucet(c.Request.Context(), to)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Created(c, "Faucet tokens minted", txResponse(receipt))
}

// Mint creates tokens for any address. Admin only.
func (h *TokenHandler) Mint(c *gin.Context) {
	sender, ok := caller(c)
	if !ok {
		return
	}
	var req TransferRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount, h.Token.Decimals)
	if !ok {
		return
	}
	receipt, err := h.Token.Mint(c.Request.Context(), sender, utils.NormalizeAddress(req.To), amount)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Created(c, "Tokens minted successfully", txResponse(receipt))
}
