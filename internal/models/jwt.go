package models

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	jwt.RegisteredClaims
}

// UserID is the account id as carried by relay identities.
func (c *Claims) UserID() string {
	return strconv.FormatUint(uint64(c.ID), 10)
}

// DisplayName is the name shown to other board members. Accounts without a
// name fall back to their email.
func (c *Claims) DisplayName() string {
	if name := strings.TrimSpace(c.FirstName + " " + c.LastName); name != "" {
		return name
	}
	return c.Email
}
