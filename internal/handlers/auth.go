package handlers

import (
	"errors"
	"marpelink-escrow-server/internal/config"
	"marpelink-escrow-server/internal/middleware"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/token"
	"marpelink-escrow-server/internal/utils"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler handles wallet account sessions.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

// RegisterRequest represents the request body for account registration.
type RegisterRequest struct {
	Address     string `json:"address" binding:"required" validate:"eth_addr"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"max=100"`
}

// Register creates an account for a wallet address.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	address := utils.NormalizeAddress(req.Address)
	if address == utils.NormalizeAddress(h.Cfg.EscrowAddress) || address == token.ZeroAddress {
		utils.Forbidden(c, "Address is reserved and cannot hold an account")
		return
	}

	var existing models.Account
	if err := h.DB.Where("address = ?", address).First(&existing).Error; err == nil {
		utils.Error(c, http.StatusConflict, "Account for this address already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	account := models.Account{
		Address:     address,
		DisplayName: req.DisplayName,
		Role:        models.RoleUser,
	}
	if slices.Contains(h.Cfg.AdminAddresses, address) {
		account.Role = models.RoleAdmin
	}
	if err := account.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.DB.Create(&account).Error; err != nil {
		utils.InternalServerError(c, "Failed to create account: "+err.Error())
		return
	}

	utils.Created(c, "Account registered successfully", account)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Address  string `json:"address" binding:"required" validate:"eth_addr"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	Account      *models.Account `json:"account,omitempty"`
}

// Login handles account login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var account models.Account
	if err := h.DB.Where("address = ?", utils.NormalizeAddress(req.Address)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid address or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !account.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid address or password")
		return
	}

	pair, ok := h.issueTokens(c, &account)
	if !ok {
		return
	}
	pair.Account = &account
	utils.Success(c, "Login successful", pair)
}

func (h *AuthHandler) issueTokens(c *gin.Context, account *models.Account) (TokenPair, bool) {
	accessToken, refreshTokenString, err := utils.GenerateTokens(account, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate tokens: "+err.Error())
		return TokenPair{}, false
	}

	refreshToken := models.RefreshToken{
		AccountID: account.ID,
		Token:     refreshTokenString,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := h.DB.Create(&refreshToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to store refresh token: "+err.Error())
		return TokenPair{}, false
	}

	c.SetCookie(
		"refresh_token",
		refreshTokenString,
		h.Cfg.JWTRefreshExpirationHours*60*60,
		"/",
		"",
		h.Cfg.IsProduction(),
		true,
	)
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshTokenString}, true
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates a refresh token and issues a new access token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	// Cookie first, request body as fallback
	presented, err := c.Cookie("refresh_token")
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token structure or signature: "+err.Error())
		return
	}

	var stored models.RefreshToken
	err = h.DB.Where("token = ? AND account_id = ? AND is_revoked = ? AND expires_at > ?",
		presented, claims.AccountID, false, time.Now()).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.InternalServerError(c, "Database error checking refresh token: "+err.Error())
		}
		return
	}

	var account models.Account
	if err := h.DB.First(&account, "id = ?", claims.AccountID).Error; err != nil {
		utils.InternalServerError(c, "Failed to find account associated with token: "+err.Error())
		return
	}

	if err := h.DB.Model(&stored).Update("is_revoked", true).Error; err != nil {
		utils.InternalServerError(c, "Failed to revoke refresh token: "+err.Error())
		return
	}

	pair, ok := h.issueTokens(c, &account)
	if !ok {
		return
	}
	utils.Success(c, "Access token refreshed successfully", pair)
}

// LogoutRequest represents the request body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes a refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	accountID, _ := middleware.GetAccountIDFromContext(c)
	result := h.DB.Model(&models.RefreshToken{}).
		Where("token = ? AND account_id = ? AND is_revoked = ?", req.RefreshToken, accountID, false).
		Updates(map[string]any{"is_revoked": true, "expires_at": time.Now()})
	if result.Error != nil {
		utils.InternalServerError(c, "Failed to revoke refresh token: "+result.Error.Error())
		return
	}

	c.SetCookie("refresh_token", "", -1, "/", "", h.Cfg.IsProduction(), true)
	utils.Success(c, "Logout successful", gin.H{"revoked": result.RowsAffected > 0})
}

// GetProfile returns the authenticated account.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var account models.Account
	if err := h.DB.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Account not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Profile fetched successfully", account)
}

// UpdateProfileRequest represents the request body for updating a profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=100"`
}

// UpdateProfile changes the display name of the authenticated account.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var account models.Account
	if err := h.DB.First(&account, "id = ?", accountID).Error; err != nil {
		utils.NotFound(c, "Account not found")
		return
	}
	account.DisplayName = req.DisplayName
	if err := h.DB.Save(&account).Error; err != nil {
		utils.InternalServerError(c, "Failed to update profile: "+err.Error())
		return
	}

	utils.Success(c, "Profile updated successfully", account)
}
