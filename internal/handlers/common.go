package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/middleware"
	"marpelink-escrow-server/internal/utils"
)

// TxResponse is returned by every write endpoint.
type TxResponse struct {
	TxHash    string         `json:"txHash"`
	Height    uint64         `json:"height"`
	Operation string         `json:"operation"`
	Sender    string         `json:"sender"`
	Events    []ledger.Event `json:"events"`
	Timestamp int64          `json:"timestamp"`
}

func txResponse(r *ledger.Receipt) TxResponse {
	return TxResponse{
		TxHash:    r.TxHash,
		Height:    r.Height,
		Operation: r.Operation,
		Sender:    r.Sender,
		Events:    r.Events,
		Timestamp: r.Timestamp,
	}
}

// caller returns the authenticated wallet, or writes 401.
func caller(c *gin.Context) (string, bool) {
	address, ok := middleware.GetAddressFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return "", false
	}
	return utils.NormalizeAddress(address), true
}

// addressParam reads and normalizes an address path parameter, or writes 400.
func addressParam(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if !utils.IsAddress(raw) {
		utils.BadRequest(c, "Invalid address: "+raw)
		return "", false
	}
	return utils.NormalizeAddress(raw), true
}

// consultationID reads the :id path parameter, or writes 400.
func consultationID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "Invalid consultation ID format")
		return 0, false
	}
	return id, true
}

// parseAmount converts a human decimal amount to base units, or writes 400.
func parseAmount(c *gin.Context, raw string, decimals int) (int64, bool) {
	amount, err := utils.ParseAmount(raw, decimals)
	if err != nil {
		utils.BadRequest(c, "Invalid amount: "+err.Error())
		return 0, false
	}
	return amount, true
}
