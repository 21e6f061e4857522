// Package auth defines the API key identity model used to authenticate
// storefront and back-office callers.
package auth

import "context"

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key belongs to a user; admin keys may additionally drive order
// lifecycle transitions.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Admin   bool
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
