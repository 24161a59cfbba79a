package handlers

import (
	"github.com/gin-gonic/gin"

	"marpelink-escrow-server/internal/escrow"
	"marpelink-escrow-server/internal/utils"
)

// DoctorHandler exposes the doctor registry.
type DoctorHandler struct {
	Contract *escrow.Contract
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(contract *escrow.Contract) *DoctorHandler {
	return &DoctorHandler{Contract: contract}
}

// RegisterDoctorRequest represents the request body for doctor registration.
// Emptiness is checked by the contract so the revert reason reaches the client.
type RegisterDoctorRequest struct {
	Name      string `json:"name" binding:"max=200"`
	Specialty string `json:"specialty" binding:"max=200"`
}

// RegisterDoctor registers the caller as a doctor.
func (h *DoctorHandler) RegisterDoctor(c *gin.Context) {
	address, ok := caller(c)
	if !ok {
		return
	}
	var req RegisterDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	receipt, err := h.Contract.RegisterDoctor(c.Request.Context(), address, req.Name, req.Specialty)
	if err != nil {
		utils.LedgerError(c, err)
		return
	}
	utils.Created(c, "Doctor registered successfully", txResponse(receipt))
}

// GetDoctorInfo returns the registry entry for an address. Unregistered addresses
// yield a zero entry rather than 404.
func (h *DoctorHandler) GetDoctorInfo(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	info, err := h.Contract.GetDoctorInfo(c.Request.Context(), address)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch doctor: "+err.Error())
		return
	}
	utils.Success(c, "Doctor fetched successfully", info)
}

// ListDoctors returns registered doctors, optionally filtered by ?specialty=.
func (h *DoctorHandler) ListDoctors(c *gin.Context) {
	doctors, err := h.Contract.ListDoctors(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetDoctorConsultations lists the consultation ids assigned to a doctor.
func (h *DoctorHandler) GetDoctorConsultations(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	ids, err := h.Contract.GetDoctorConsultations(c.Request.Context(), address)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch consultations: "+err.Error())
		return
	}
	utils.Success(c, "Consultations fetched successfully", ids)
}
