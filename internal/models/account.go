package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Account is a wallet address that can authenticate against the API.
// The address is the identity used by every ledger operation.
type Account struct {
	BaseModel
	Address     string `gorm:"uniqueIndex;size:42;not null" json:"address"`
	Password    string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	DisplayName string `gorm:"size:100" json:"displayName"`
	Role        Role   `gorm:"size:20;default:'user'" json:"role"`

	RefreshTokens []RefreshToken `gorm:"foreignKey:AccountID" json:"-"`
}

// SetPassword hashes a password and sets it on the account
func (a *Account) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the account's hashed password
func (a *Account) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password))
	return err == nil
}
