package handlers

import (
	"github.com/gin-gonic/gin"

	"marpelink-escrow-server/internal/escrow"
	"marpelink-escrow-server/internal/token"
	"marpelink-escrow-server/internal/utils"
)

// ConsultationHandler exposes the consultation lifecycle and ratings.
type ConsultationHandler struct {
	Contract *escrow.Contract
	Token    *token.Token
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(contract *escrow.Contract, tok *token.Token) *ConsultationHandler {
	return &ConsultationHandler{Contract: contract, Token: tok}
}

// RequestConsultationRequest represents the request body for a consultation request.
// Amount is a decimal string in whole tokens, e.g. "100" or "12.5".
type RequestConsultationRequest struct {
	Doctor string `json:"doctor" binding:"required" validate:"eth_addr"`
	Amount string `json:"amount" binding:"required"`
}

// ConsultationResponse adds the formatted fee to consultation details.
type ConsultationResponse struct {
	escrow.ConsultationDetails
	AmountFormatted string `json:"amountFormatted"`
}

// RequestConsultation escrows the fee from the caller. The caller must have approved
// the escrow address beforehand.
func (h *ConsultationHandler) RequestConsultation(c *gin.Context) {
	address, ok := caller(c)
	if !ok {
		return
	}
	var req RequestConsultationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount, h.Token.Decimals)
	if !ok {
		return
	}

	receipt, id, err := h.Contract.RequestConsultation(c.Request.Context(), address, utils.NormalizeAddress(req.Doctor), amount)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Created(c, "Consultation requested successfully", gin.H{
		"consultationId": id,
		"transaction":    txResponse(receipt),
	})
}

// CompleteConsultation releases the escrowed fee to the doctor.
func (h *ConsultationHandler) CompleteConsultation(c *gin.Context) {
	address, ok := caller(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	receipt, err := h.Contract.CompleteConsultation(c.Request.Context(), address, id)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Consultation completed successfully", txResponse(receipt))
}

// CancelConsultation refunds the escrowed fee to the patient.
func (h *ConsultationHandler) CancelConsultation(c *gin.Context) {
	address, ok := caller(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	receipt, err := h.Contract.CancelConsultation(c.Request.Context(), address, id)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Consultation cancelled successfully", txResponse(receipt))
}

// RateDoctorRequest represents the request body for rating a consultation.
// Range is checked by the contract so the revert reason reaches the client.
type RateDoctorRequest struct {
	Rating *int `json:"rating" binding:"required"`
}

// RateDoctor rates the doctor of a completed consultation.
func (h *ConsultationHandler) RateDoctor(c *gin.Context) {
	address, ok := caller(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}
	var req RateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	receipt, err := h.Contract.RateDoctor(c.Request.Context(), address, id, *req.Rating)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Doctor rated successfully", txResponse(receipt))
}

// GetConsultationDetails returns one consultation.
func (h *ConsultationHandler) GetConsultationDetails(c *gin.Context) {
	id, ok := consultationID(c)
	if !ok {
		return
	}
	details, err := h.Contract.GetConsultationDetails(c.Request.Context(), id)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Success(c, "Consultation fetched successfully", ConsultationResponse{
		ConsultationDetails: details,
		AmountFormatted:     utils.FormatAmount(details.Amount, h.Token.Decimals),
	})
}

// GetPatientConsultations lists the consultation ids requested by a patient.
func (h *ConsultationHandler) GetPatientConsultations(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	ids, err := h.Contract.GetPatientConsultations(c.Request.Context(), address)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch consultations: "+err.Error())
		return
	}
	utils.Success(c, "Consultations fetched successfully", ids)
}

// GetContractBalance reports the custody balance next to the escrowed total.
func (h *ConsultationHandler) GetContractBalance(c *gin.Context) {
	balance, escrowed, err := h.Contract.CustodySnapshot(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch escrow balance: "+err.Error())
		return
	}
	utils.Success(c, "Escrow balance fetched successfully", gin.H{
		"address":           h.Contract.Address,
		"balance":           balance,
		"balanceFormatted":  utils.FormatAmount(balance, h.Token.Decimals),
		"escrowed":          escrowed,
		"escrowedFormatted": utils.FormatAmount(escrowed, h.Token.Decimals),
	})
}
