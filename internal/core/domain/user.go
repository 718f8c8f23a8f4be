package domain

import (
	"strings"
	"time"
)

const (
	RoleCustomer = "Customer"
	RoleManager  = "Manager"
	RoleAdmin    = "Admin"
)

// DefaultBalance is credited to every account at registration.
const DefaultBalance Amount = 100000_00

// Field limits mirror the kod_users column widths.
const (
	MaxUsernameLen = 50
	MaxEmailLen    = 100
	MaxPhoneLen    = 20
)

// User models a bank customer account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Balance      Amount    `json:"balance"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// EmailKey is the form of an email address that carries the uniqueness
// constraint. Addresses that differ only by case share a key.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
